package worker

import (
	"context"
	"errors"

	"scout/internal/database"
	"scout/internal/model"
	"scout/internal/pipeline"
	"scout/internal/rabbitmq"

	"scout/pkg/scoring"
)

// SummaryWorker is the final scoring stage. It always terminates the
// per-item pipeline.
type SummaryWorker struct {
	store    pipeline.Store
	scorer   scoring.Scorer
	profiles pipeline.Profiles
	tracker  *pipeline.Tracker
}

func NewSummaryWorker(store pipeline.Store, scorer scoring.Scorer, profiles pipeline.Profiles, tracker *pipeline.Tracker) *SummaryWorker {
	return &SummaryWorker{
		store:    store,
		scorer:   scorer,
		profiles: profiles,
		tracker:  tracker,
	}
}

// Queue implements Handler
func (w *SummaryWorker) Queue() string {
	return rabbitmq.QueueSummary
}

// Handle implements Handler
func (w *SummaryWorker) Handle(ctx context.Context, msg model.WorkItem) error {
	item, err := w.store.GetItemByID(ctx, msg.ItemID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return pipeline.Permanent("item %s not found", msg.ItemID)
		}
		return err
	}

	if err := checkStage(item, model.StageSummaryScored); err != nil {
		return err
	}

	profile, err := loadProfile(ctx, w.profiles, msg.OwnerID)
	if err != nil {
		return err
	}

	text, err := w.scorer.Score(ctx, buildPrompt(profile, item), summaryInstructions)
	if err != nil {
		return pipeline.Permanent("summary scoring failed for item %s: %v", msg.ItemID, err)
	}

	result, err := parseSummary(text)
	if err != nil {
		return err
	}

	if err := w.store.SaveSummary(ctx, msg.ItemID, result.Summary, model.StageSummaryScored); err != nil {
		return err
	}

	if msg.BatchID == "" {
		return nil
	}

	if _, err := w.store.ClaimStage(ctx, msg.BatchID, msg.ItemID, model.StageSummaryScored); err != nil {
		return err
	}

	batch, _, err := w.store.ClaimItemCompleted(ctx, msg.BatchID, msg.ItemID)
	if err != nil {
		return err
	}
	return w.tracker.OnLedgerChange(ctx, batch)
}
