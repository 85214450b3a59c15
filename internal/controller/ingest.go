package controller

import (
	"context"
	"fmt"
	"time"

	"scout/internal/cache"
	"scout/internal/model"
	"scout/internal/pipeline"
	"scout/pkg/source"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// readyDedupeTTL bounds how long a sourceId is considered already handled
const readyDedupeTTL = 5 * time.Minute

// IngestController turns ingestion-boundary events into dispatched batches
type IngestController interface {
	// HandleSourceReady reacts to a "result ready" event. The bool reports
	// whether the event was a duplicate and skipped.
	HandleSourceReady(ctx context.Context, sourceID string) (*model.Batch, bool, error)

	// IngestItems dispatches direct item payloads under a synthetic batch id
	IngestItems(ctx context.Context, ownerID, searchID string, items []model.RawItem) (*model.Batch, error)
}

type ingestController struct {
	dispatcher *pipeline.Dispatcher
	fetcher    source.ResultFetcher
	cache      cache.Cache
}

func NewIngestController(dispatcher *pipeline.Dispatcher, fetcher source.ResultFetcher, c cache.Cache) IngestController {
	return &ingestController{
		dispatcher: dispatcher,
		fetcher:    fetcher,
		cache:      c,
	}
}

// HandleSourceReady fetches the finished scrape behind sourceID and fans it
// out as a new batch
func (c *ingestController) HandleSourceReady(ctx context.Context, sourceID string) (*model.Batch, bool, error) {
	if sourceID == "" {
		return nil, false, fmt.Errorf("source id is required")
	}

	if c.cache != nil {
		created, err := c.cache.SetIfAbsent(ctx, "ready:"+sourceID, []byte("1"), readyDedupeTTL)
		if err != nil {
			log.Warn().Err(err).Str("sourceID", sourceID).Msg("Ready-event dedupe unavailable, proceeding")
		} else if !created {
			log.Info().Str("sourceID", sourceID).Msg("Duplicate ready event ignored")
			return nil, true, nil
		}
	}

	result, err := c.fetcher.FetchResults(ctx, sourceID)
	if err != nil {
		c.releaseDedupe(ctx, sourceID)
		return nil, false, fmt.Errorf("failed to fetch results for source %s: %w", sourceID, err)
	}

	batchID := uuid.NewString()
	batch, err := c.dispatcher.Dispatch(ctx, result.OwnerID, batchID, sourceID, result.SearchID, result.Items)
	if err != nil {
		c.releaseDedupe(ctx, sourceID)
		return nil, false, err
	}

	log.Info().
		Str("sourceID", sourceID).
		Str("batchID", batchID).
		Int("items", len(result.Items)).
		Msg("Source results ingested")
	return batch, false, nil
}

// releaseDedupe removes the ready-event marker after a failed ingestion so a
// redelivered event within the TTL can try again instead of being ignored
func (c *ingestController) releaseDedupe(ctx context.Context, sourceID string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx, "ready:"+sourceID); err != nil {
		log.Warn().Err(err).Str("sourceID", sourceID).Msg("Failed to release dedupe key")
	}
}

// IngestItems dispatches direct payloads without a pre-existing batch
func (c *ingestController) IngestItems(ctx context.Context, ownerID, searchID string, items []model.RawItem) (*model.Batch, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("owner id is required")
	}

	batchID := uuid.NewString()
	batch, err := c.dispatcher.Dispatch(ctx, ownerID, batchID, "", searchID, items)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("ownerID", ownerID).
		Str("batchID", batchID).
		Int("items", len(items)).
		Msg("Direct items ingested")
	return batch, nil
}
