// Package pipelinetest provides in-memory stand-ins for the pipeline's
// storage and transport collaborators. The claim operations keep the same
// at-most-once semantics as the guarded database updates so concurrency
// tests exercise the real contract.
package pipelinetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scout/internal/database"
	"scout/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemStore implements pipeline.Store on maps guarded by one mutex
type MemStore struct {
	mu      sync.Mutex
	batches map[string]*model.Batch
	items   map[string]*model.Item
	intents map[primitive.ObjectID]*model.NotificationIntent
	owners  map[string]*model.OwnerContact

	// CreateIntentErr, when set, fails CreateNotificationIntent
	CreateIntentErr error

	// CreateBatchErr, when set, fails CreateBatch
	CreateBatchErr error
}

func NewMemStore() *MemStore {
	return &MemStore{
		batches: make(map[string]*model.Batch),
		items:   make(map[string]*model.Item),
		intents: make(map[primitive.ObjectID]*model.NotificationIntent),
		owners:  make(map[string]*model.OwnerContact),
	}
}

func copyBatch(b *model.Batch) *model.Batch {
	out := *b
	out.CompletedItemIDs = append([]string(nil), b.CompletedItemIDs...)
	out.FailedItemIDs = append([]string(nil), b.FailedItemIDs...)
	if b.ItemStages != nil {
		out.ItemStages = make(map[string]model.Stage, len(b.ItemStages))
		for k, v := range b.ItemStages {
			out.ItemStages[k] = v
		}
	}
	if b.StageHistory != nil {
		out.StageHistory = make(map[string][]model.Stage, len(b.StageHistory))
		for k, v := range b.StageHistory {
			out.StageHistory[k] = append([]model.Stage(nil), v...)
		}
	}
	if b.NotificationRequestID != nil {
		id := *b.NotificationRequestID
		out.NotificationRequestID = &id
	}
	return &out
}

func copyItem(i *model.Item) *model.Item {
	out := *i
	return &out
}

func (s *MemStore) CreateBatch(ctx context.Context, batch *model.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateBatchErr != nil {
		return s.CreateBatchErr
	}
	if _, ok := s.batches[batch.ID]; ok {
		return fmt.Errorf("duplicate batch id %s", batch.ID)
	}
	if batch.StartedAt.IsZero() {
		batch.StartedAt = time.Now()
	}
	s.batches[batch.ID] = copyBatch(batch)
	return nil
}

func (s *MemStore) GetBatchByID(ctx context.Context, id string) (*model.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return copyBatch(b), nil
}

func (s *MemStore) ClaimStage(ctx context.Context, batchID, itemID string, stage model.Stage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return false, database.ErrNotFound
	}
	// Guard on the history, not the current stage, so a stage can be
	// claimed at most once even after the item has moved on
	for _, claimed := range b.StageHistory[itemID] {
		if claimed == stage {
			return false, nil
		}
	}
	if b.ItemStages == nil {
		b.ItemStages = make(map[string]model.Stage)
	}
	b.ItemStages[itemID] = stage
	if b.StageHistory == nil {
		b.StageHistory = make(map[string][]model.Stage)
	}
	b.StageHistory[itemID] = append(b.StageHistory[itemID], stage)
	return true, nil
}

func (s *MemStore) ClaimItemCompleted(ctx context.Context, batchID, itemID string) (*model.Batch, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return nil, false, database.ErrNotFound
	}
	for _, done := range b.CompletedItemIDs {
		if done == itemID {
			return copyBatch(b), false, nil
		}
	}
	b.CompletedItemIDs = append(b.CompletedItemIDs, itemID)
	b.CompletedJobs++
	return copyBatch(b), true, nil
}

func (s *MemStore) ClaimNotification(ctx context.Context, batchID string, requestID primitive.ObjectID) (primitive.ObjectID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return primitive.NilObjectID, false, database.ErrNotFound
	}
	if b.NotificationRequestID != nil {
		return *b.NotificationRequestID, false, nil
	}
	id := requestID
	b.NotificationRequestID = &id
	b.NotificationSent = true
	return requestID, true, nil
}

func (s *MemStore) MarkBatchComplete(ctx context.Context, batchID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return false, database.ErrNotFound
	}
	if b.Status != model.BatchProcessing {
		return false, nil
	}
	now := time.Now()
	b.Status = model.BatchComplete
	b.CompletedAt = &now
	return true, nil
}

func (s *MemStore) MarkBatchTimedOut(ctx context.Context, batchID, note string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return false, database.ErrNotFound
	}
	if b.Status != model.BatchProcessing || b.NotificationRequestID != nil {
		return false, nil
	}
	now := time.Now()
	b.Status = model.BatchTimeout
	b.Note = note
	b.CompletedAt = &now
	return true, nil
}

func (s *MemStore) DropFailedItem(ctx context.Context, batchID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return database.ErrNotFound
	}
	b.TotalJobs--
	b.FailedItemIDs = append(b.FailedItemIDs, itemID)
	return nil
}

func (s *MemStore) FindStaleBatches(ctx context.Context, cutoff time.Time) ([]*model.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stale []*model.Batch
	for _, b := range s.batches {
		if b.Status == model.BatchProcessing && b.StartedAt.Before(cutoff) && !b.NotificationSent {
			stale = append(stale, copyBatch(b))
		}
	}
	return stale, nil
}

func (s *MemStore) BulkUpsertItems(ctx context.Context, items []*model.Item) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		existing, ok := s.items[item.ID]
		if !ok {
			stored := copyItem(item)
			if stored.Stage == "" {
				stored.Stage = model.StageRaw
			}
			s.items[item.ID] = stored
			continue
		}
		existing.OwnerID = item.OwnerID
		existing.Title = item.Title
		existing.Company = item.Company
		existing.Location = item.Location
		existing.URL = item.URL
		existing.Description = item.Description
		if item.BatchID != "" {
			existing.BatchID = item.BatchID
		}
	}
	return len(items), nil
}

func (s *MemStore) GetItemByID(ctx context.Context, id string) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return copyItem(item), nil
}

func (s *MemStore) SaveBasicsResult(ctx context.Context, itemID string, score int, reasons []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok {
		return database.ErrNotFound
	}
	item.Stage = model.StageBasicsScored
	item.BasicsScore = &score
	item.BasicsReasons = reasons
	return nil
}

func (s *MemStore) SavePreferenceResult(ctx context.Context, itemID string, preferenceScore, adjustedScore int, reasons []string, stage model.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok {
		return database.ErrNotFound
	}
	item.Stage = stage
	item.PreferenceScore = &preferenceScore
	item.AdjustedScore = &adjustedScore
	item.PreferenceReasons = reasons
	return nil
}

func (s *MemStore) SaveSummary(ctx context.Context, itemID, summary string, stage model.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok {
		return database.ErrNotFound
	}
	item.Stage = stage
	item.Summary = summary
	return nil
}

func (s *MemStore) SetItemStage(ctx context.Context, itemID string, stage model.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok {
		return database.ErrNotFound
	}
	item.Stage = stage
	return nil
}

func (s *MemStore) ListItemsByBatch(ctx context.Context, batchID string) ([]*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Item
	for _, item := range s.items {
		if item.BatchID == batchID {
			out = append(out, copyItem(item))
		}
	}
	return out, nil
}

func (s *MemStore) CreateNotificationIntent(ctx context.Context, intent *model.NotificationIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateIntentErr != nil {
		return s.CreateIntentErr
	}
	stored := *intent
	s.intents[intent.ID] = &stored
	return nil
}

func (s *MemStore) GetNotificationIntent(ctx context.Context, id primitive.ObjectID) (*model.NotificationIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	stored := *intent
	return &stored, nil
}

func (s *MemStore) ListNotificationIntentsByBatch(ctx context.Context, batchID string) ([]*model.NotificationIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.NotificationIntent
	for _, intent := range s.intents {
		if intent.BatchID == batchID {
			stored := *intent
			out = append(out, &stored)
		}
	}
	return out, nil
}

func (s *MemStore) GetOwnerContact(ctx context.Context, ownerID string) (*model.OwnerContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contact, ok := s.owners[ownerID]
	if !ok {
		return nil, database.ErrNotFound
	}
	stored := *contact
	return &stored, nil
}

func (s *MemStore) UpsertOwnerContact(ctx context.Context, contact *model.OwnerContact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *contact
	s.owners[contact.OwnerID] = &stored
	return nil
}
