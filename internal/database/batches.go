package database

import (
	"context"
	"errors"
	"time"

	"scout/internal/model"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BatchDatabase defines ledger operations. Every completion-sensitive
// mutation (completed_jobs, completed_item_ids, notification_request_id,
// status) goes through a guarded atomic update, never read-modify-write.
type BatchDatabase interface {
	// CreateBatch inserts a new ledger document
	CreateBatch(ctx context.Context, batch *model.Batch) error

	// GetBatchByID loads a ledger or returns ErrNotFound
	GetBatchByID(ctx context.Context, id string) (*model.Batch, error)

	// ClaimStage records that itemID reached stage, at most once per
	// (batch, item, stage). The winner of a duplicate delivery race gets
	// claimed=true and is the only caller allowed to publish the forward.
	ClaimStage(ctx context.Context, batchID, itemID string, stage model.Stage) (bool, error)

	// ClaimItemCompleted adds itemID to the completed set and increments
	// completed_jobs, at most once per item. Returns the post-claim ledger
	// either way so callers can evaluate completion.
	ClaimItemCompleted(ctx context.Context, batchID, itemID string) (*model.Batch, bool, error)

	// ClaimNotification sets notification_request_id to requestID if it is
	// still unset, flipping notification_sent in the same update. Returns
	// the winning id, which may belong to an earlier caller.
	ClaimNotification(ctx context.Context, batchID string, requestID primitive.ObjectID) (primitive.ObjectID, bool, error)

	// MarkBatchComplete transitions processing -> complete
	MarkBatchComplete(ctx context.Context, batchID string) (bool, error)

	// MarkBatchTimedOut transitions processing -> timeout with a diagnostic
	// note, skipping batches whose notification id is already claimed
	MarkBatchTimedOut(ctx context.Context, batchID, note string) (bool, error)

	// DropFailedItem removes a never-published item from total_jobs so the
	// ledger can still reach completion
	DropFailedItem(ctx context.Context, batchID, itemID string) error

	// FindStaleBatches returns processing batches started before cutoff
	// whose notification has not been sent
	FindStaleBatches(ctx context.Context, cutoff time.Time) ([]*model.Batch, error)
}

// CreateBatch inserts a new ledger document
func (m *mongoDB) CreateBatch(ctx context.Context, batch *model.Batch) error {
	if batch.StartedAt.IsZero() {
		batch.StartedAt = time.Now()
	}
	if batch.CompletedItemIDs == nil {
		batch.CompletedItemIDs = []string{}
	}

	_, err := m.batchesCol.InsertOne(ctx, batch)
	if err != nil {
		log.Error().Err(err).Str("batchID", batch.ID).Msg("Failed to create batch ledger")
		return err
	}

	log.Debug().
		Str("batchID", batch.ID).
		Str("ownerID", batch.OwnerID).
		Int("totalJobs", batch.TotalJobs).
		Str("status", string(batch.Status)).
		Msg("Created batch ledger")
	return nil
}

// GetBatchByID retrieves a ledger by its ID
func (m *mongoDB) GetBatchByID(ctx context.Context, id string) (*model.Batch, error) {
	var batch model.Batch
	err := m.batchesCol.FindOne(ctx, bson.M{"_id": id}).Decode(&batch)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Str("batchID", id).Msg("Failed to get batch")
		return nil, err
	}

	return &batch, nil
}

// ClaimStage implements the claim-once guard keyed by (batch, item, stage).
// The filter runs against the stage history, not the current stage, so a
// stale redelivery cannot reclaim a stage the item already passed through.
func (m *mongoDB) ClaimStage(ctx context.Context, batchID, itemID string, stage model.Stage) (bool, error) {
	filter := bson.M{
		"_id":                     batchID,
		"stage_history." + itemID: bson.M{"$ne": stage},
	}
	update := bson.M{
		"$set":  bson.M{"item_stages." + itemID: stage},
		"$push": bson.M{"stage_history." + itemID: stage},
	}

	result, err := m.batchesCol.UpdateOne(ctx, filter, update)
	if err != nil {
		log.Error().Err(err).Str("batchID", batchID).Str("itemID", itemID).Str("stage", string(stage)).Msg("Failed to claim stage")
		return false, err
	}

	claimed := result.ModifiedCount == 1
	log.Debug().
		Str("batchID", batchID).
		Str("itemID", itemID).
		Str("stage", string(stage)).
		Bool("claimed", claimed).
		Msg("Stage claim attempted")
	return claimed, nil
}

// ClaimItemCompleted transactionally counts an item exactly once
func (m *mongoDB) ClaimItemCompleted(ctx context.Context, batchID, itemID string) (*model.Batch, bool, error) {
	filter := bson.M{
		"_id":                batchID,
		"completed_item_ids": bson.M{"$ne": itemID},
	}
	update := bson.M{
		"$addToSet": bson.M{"completed_item_ids": itemID},
		"$inc":      bson.M{"completed_jobs": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var batch model.Batch
	err := m.batchesCol.FindOneAndUpdate(ctx, filter, update, opts).Decode(&batch)
	if err == nil {
		log.Debug().
			Str("batchID", batchID).
			Str("itemID", itemID).
			Int("completedJobs", batch.CompletedJobs).
			Int("totalJobs", batch.TotalJobs).
			Msg("Item claimed against ledger")
		return &batch, true, nil
	}

	if !errors.Is(err, mongo.ErrNoDocuments) {
		log.Error().Err(err).Str("batchID", batchID).Str("itemID", itemID).Msg("Failed to claim item completion")
		return nil, false, err
	}

	// Duplicate delivery already counted this item, or the batch is gone.
	// Load the current ledger so the caller can still evaluate completion.
	current, err := m.GetBatchByID(ctx, batchID)
	if err != nil {
		return nil, false, err
	}

	log.Debug().Str("batchID", batchID).Str("itemID", itemID).Msg("Duplicate item claim ignored")
	return current, false, nil
}

// ClaimNotification is the sole deduplication point for the batch's
// terminal side effect
func (m *mongoDB) ClaimNotification(ctx context.Context, batchID string, requestID primitive.ObjectID) (primitive.ObjectID, bool, error) {
	filter := bson.M{
		"_id":                     batchID,
		"notification_request_id": nil,
	}
	update := bson.M{
		"$set": bson.M{
			"notification_request_id": requestID,
			"notification_sent":       true,
		},
	}

	result, err := m.batchesCol.UpdateOne(ctx, filter, update)
	if err != nil {
		log.Error().Err(err).Str("batchID", batchID).Msg("Failed to claim notification")
		return primitive.NilObjectID, false, err
	}

	if result.ModifiedCount == 1 {
		log.Info().
			Str("batchID", batchID).
			Str("requestID", requestID.Hex()).
			Msg("Notification claim won")
		return requestID, true, nil
	}

	// Lost the race: surface the id the winner recorded
	batch, err := m.GetBatchByID(ctx, batchID)
	if err != nil {
		return primitive.NilObjectID, false, err
	}
	if batch.NotificationRequestID == nil {
		return primitive.NilObjectID, false, errors.New("notification claim lost but request id unset")
	}

	log.Debug().
		Str("batchID", batchID).
		Str("requestID", batch.NotificationRequestID.Hex()).
		Msg("Notification already claimed, returning existing id")
	return *batch.NotificationRequestID, false, nil
}

// MarkBatchComplete transitions the ledger out of processing
func (m *mongoDB) MarkBatchComplete(ctx context.Context, batchID string) (bool, error) {
	now := time.Now()
	filter := bson.M{"_id": batchID, "status": model.BatchProcessing}
	update := bson.M{
		"$set": bson.M{
			"status":       model.BatchComplete,
			"completed_at": now,
		},
	}

	result, err := m.batchesCol.UpdateOne(ctx, filter, update)
	if err != nil {
		log.Error().Err(err).Str("batchID", batchID).Msg("Failed to mark batch complete")
		return false, err
	}

	if result.ModifiedCount == 1 {
		log.Info().Str("batchID", batchID).Msg("Batch marked complete")
	}
	return result.ModifiedCount == 1, nil
}

// MarkBatchTimedOut force-terminates an abandoned batch. The filter doubles
// as the race guard against a concurrently completing handler: once the
// notification id is set, the batch is left alone.
func (m *mongoDB) MarkBatchTimedOut(ctx context.Context, batchID, note string) (bool, error) {
	now := time.Now()
	filter := bson.M{
		"_id":                     batchID,
		"status":                  model.BatchProcessing,
		"notification_request_id": nil,
	}
	update := bson.M{
		"$set": bson.M{
			"status":       model.BatchTimeout,
			"note":         note,
			"completed_at": now,
		},
	}

	result, err := m.batchesCol.UpdateOne(ctx, filter, update)
	if err != nil {
		log.Error().Err(err).Str("batchID", batchID).Msg("Failed to mark batch timed out")
		return false, err
	}

	if result.ModifiedCount == 1 {
		log.Warn().Str("batchID", batchID).Str("note", note).Msg("Batch timed out")
	}
	return result.ModifiedCount == 1, nil
}

// DropFailedItem excludes a never-published item from the completion target
func (m *mongoDB) DropFailedItem(ctx context.Context, batchID, itemID string) error {
	update := bson.M{
		"$inc":      bson.M{"total_jobs": -1},
		"$addToSet": bson.M{"failed_item_ids": itemID},
	}

	_, err := m.batchesCol.UpdateOne(ctx, bson.M{"_id": batchID}, update)
	if err != nil {
		log.Error().Err(err).Str("batchID", batchID).Str("itemID", itemID).Msg("Failed to drop failed item from ledger")
		return err
	}

	log.Warn().Str("batchID", batchID).Str("itemID", itemID).Msg("Item excluded from batch total")
	return nil
}

// FindStaleBatches feeds the reaper's sweep
func (m *mongoDB) FindStaleBatches(ctx context.Context, cutoff time.Time) ([]*model.Batch, error) {
	filter := bson.M{
		"status":            model.BatchProcessing,
		"started_at":        bson.M{"$lt": cutoff},
		"notification_sent": false,
	}

	cursor, err := m.batchesCol.Find(ctx, filter, options.Find().SetSort(bson.M{"started_at": 1}))
	if err != nil {
		log.Error().Err(err).Time("cutoff", cutoff).Msg("Failed to query stale batches")
		return nil, err
	}
	defer cursor.Close(ctx)

	var batches []*model.Batch
	if err := cursor.All(ctx, &batches); err != nil {
		log.Error().Err(err).Msg("Failed to decode stale batches")
		return nil, err
	}

	return batches, nil
}
