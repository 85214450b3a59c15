package pipeline

import (
	"context"
	"fmt"
	"time"

	"scout/internal/config"
	"scout/internal/model"
	"scout/internal/rabbitmq"
	"scout/internal/retry"

	"github.com/rs/zerolog/log"
)

// Dispatcher fans one ingested result set out into per-item records, one
// ledger, and one stage-1 work item per record.
type Dispatcher struct {
	store    Store
	queue    Queue
	notifier *Notifier
	tracker  *Tracker
	cfg      config.PipelineConfig
}

func NewDispatcher(store Store, queue Queue, notifier *Notifier, tracker *Tracker, cfg config.PipelineConfig) *Dispatcher {
	return &Dispatcher{
		store:    store,
		queue:    queue,
		notifier: notifier,
		tracker:  tracker,
		cfg:      cfg,
	}
}

func (d *Dispatcher) writeRetryConfig() retry.Config {
	maxRetries := d.cfg.DispatchMaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	delay := time.Duration(d.cfg.DispatchDelayMs) * time.Millisecond
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return retry.Config{
		MaxRetries:   maxRetries,
		InitialDelay: delay,
		MaxDelay:     30 * time.Second,
		Factor:       2,
	}
}

// Dispatch ingests one batch. A failure to persist the initial records or
// ledger aborts the whole call; per-item publish failures only shrink the
// completion target.
func (d *Dispatcher) Dispatch(ctx context.Context, ownerID, batchID, sourceID, searchID string, raw []model.RawItem) (*model.Batch, error) {
	if len(raw) == 0 {
		return d.dispatchEmpty(ctx, ownerID, batchID, sourceID)
	}

	items := make([]*model.Item, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		if r.ItemID == "" {
			log.Warn().Str("batchID", batchID).Str("title", r.Title).Msg("Skipping raw item without id")
			continue
		}
		// Duplicate ids collapse to one document under upsert, so counting
		// them separately would leave a target the ledger can never reach
		if seen[r.ItemID] {
			log.Warn().Str("batchID", batchID).Str("itemID", r.ItemID).Msg("Skipping duplicate raw item")
			continue
		}
		seen[r.ItemID] = true
		items = append(items, &model.Item{
			ID:          r.ItemID,
			OwnerID:     ownerID,
			BatchID:     batchID,
			Title:       r.Title,
			Company:     r.Company,
			Location:    r.Location,
			URL:         r.URL,
			Description: r.Description,
			Stage:       model.StageRaw,
		})
	}

	if len(items) == 0 {
		return d.dispatchEmpty(ctx, ownerID, batchID, sourceID)
	}

	// Bulk item write with backoff; exhausting retries aborts the ingestion
	err := retry.Do(ctx, d.writeRetryConfig(), func(ctx context.Context) error {
		_, err := d.store.BulkUpsertItems(ctx, items)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist batch items: %w", err)
	}

	batch := &model.Batch{
		ID:            batchID,
		OwnerID:       ownerID,
		SourceID:      sourceID,
		TotalJobs:     len(items),
		CompletedJobs: 0,
		Status:        model.BatchProcessing,
		StartedAt:     time.Now(),
	}
	if err := d.store.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to initialize batch ledger: %w", err)
	}

	published := 0
	for _, item := range items {
		msg := model.WorkItem{
			OwnerID:    ownerID,
			ItemID:     item.ID,
			BatchID:    batchID,
			SearchID:   searchID,
			EnqueuedAt: time.Now(),
		}
		if err := d.queue.PublishWorkItem(ctx, rabbitmq.QueueBasics, msg); err != nil {
			// The item can never complete, so take it out of the target
			// rather than leave a ledger that can never close
			log.Error().Err(err).Str("batchID", batchID).Str("itemID", item.ID).Msg("Failed to publish work item")
			if dropErr := d.store.DropFailedItem(ctx, batchID, item.ID); dropErr != nil {
				log.Error().Err(dropErr).Str("batchID", batchID).Str("itemID", item.ID).Msg("Failed to exclude item from ledger")
			}
			continue
		}
		published++
	}

	log.Info().
		Str("batchID", batchID).
		Str("ownerID", ownerID).
		Int("items", len(items)).
		Int("published", published).
		Msg("Batch dispatched")

	if published < len(items) {
		// Re-evaluate completion in case the target shrank to the point of
		// being already met (worst case: nothing published at all)
		current, err := d.store.GetBatchByID(ctx, batchID)
		if err != nil {
			return batch, nil
		}
		if err := d.tracker.OnLedgerChange(ctx, current); err != nil {
			log.Error().Err(err).Str("batchID", batchID).Msg("Post-dispatch completion check failed")
		}
		return current, nil
	}

	return batch, nil
}

// dispatchEmpty records the empty-result batch and notifies immediately
func (d *Dispatcher) dispatchEmpty(ctx context.Context, ownerID, batchID, sourceID string) (*model.Batch, error) {
	batch := &model.Batch{
		ID:        batchID,
		OwnerID:   ownerID,
		SourceID:  sourceID,
		TotalJobs: 0,
		Status:    model.BatchEmpty,
		StartedAt: time.Now(),
	}
	if err := d.store.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to initialize empty batch ledger: %w", err)
	}

	if _, err := d.notifier.Dispatch(ctx, ownerID, batchID); err != nil {
		log.Error().Err(err).Str("batchID", batchID).Msg("Failed to dispatch empty-result notification")
		return batch, err
	}

	log.Info().Str("batchID", batchID).Str("ownerID", ownerID).Msg("Empty batch recorded and notified")
	return batch, nil
}
