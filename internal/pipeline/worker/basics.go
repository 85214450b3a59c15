package worker

import (
	"context"
	"errors"
	"time"

	"scout/internal/database"
	"scout/internal/model"
	"scout/internal/pipeline"
	"scout/internal/rabbitmq"

	"scout/pkg/scoring"

	"github.com/rs/zerolog/log"
)

// BasicsWorker is the first scoring stage: hard-requirements screening.
// Items at or below the threshold terminate here but still count against
// the ledger.
type BasicsWorker struct {
	store     pipeline.Store
	queue     pipeline.Queue
	scorer    scoring.Scorer
	profiles  pipeline.Profiles
	tracker   *pipeline.Tracker
	threshold int
}

func NewBasicsWorker(store pipeline.Store, queue pipeline.Queue, scorer scoring.Scorer, profiles pipeline.Profiles, tracker *pipeline.Tracker, threshold int) *BasicsWorker {
	if threshold <= 0 {
		threshold = 50
	}
	return &BasicsWorker{
		store:     store,
		queue:     queue,
		scorer:    scorer,
		profiles:  profiles,
		tracker:   tracker,
		threshold: threshold,
	}
}

// Queue implements Handler
func (w *BasicsWorker) Queue() string {
	return rabbitmq.QueueBasics
}

// Handle implements Handler
func (w *BasicsWorker) Handle(ctx context.Context, msg model.WorkItem) error {
	item, err := w.store.GetItemByID(ctx, msg.ItemID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return pipeline.Permanent("item %s not found", msg.ItemID)
		}
		return err
	}

	if err := checkStage(item, model.StageBasicsScored); err != nil {
		return err
	}
	if item.Description == "" {
		return pipeline.Permanent("item %s has no description", msg.ItemID)
	}

	profile, err := loadProfile(ctx, w.profiles, msg.OwnerID)
	if err != nil {
		return err
	}

	text, err := w.scorer.Score(ctx, buildPrompt(profile, item), basicsInstructions)
	if err != nil {
		// The scoring client already retried transient failures
		return pipeline.Permanent("basics scoring failed for item %s: %v", msg.ItemID, err)
	}

	result, err := parseScore(text)
	if err != nil {
		return err
	}

	if err := w.store.SaveBasicsResult(ctx, msg.ItemID, result.Score, result.Reasons); err != nil {
		return err
	}

	forward := result.Score > w.threshold

	if msg.BatchID == "" {
		// Out-of-batch item: no ledger to claim against
		if forward {
			return w.forward(ctx, msg)
		}
		return nil
	}

	claimed, err := w.store.ClaimStage(ctx, msg.BatchID, msg.ItemID, model.StageBasicsScored)
	if err != nil {
		return err
	}

	if forward {
		if !claimed {
			// Duplicate delivery: the claim winner already published
			return nil
		}
		return w.forward(ctx, msg)
	}

	log.Debug().
		Str("itemID", msg.ItemID).
		Int("score", result.Score).
		Int("threshold", w.threshold).
		Msg("Item below basics threshold, terminating")

	batch, _, err := w.store.ClaimItemCompleted(ctx, msg.BatchID, msg.ItemID)
	if err != nil {
		return err
	}
	return w.tracker.OnLedgerChange(ctx, batch)
}

// forward publishes to the preference queue after the basics write committed
func (w *BasicsWorker) forward(ctx context.Context, msg model.WorkItem) error {
	next := model.WorkItem{
		OwnerID:    msg.OwnerID,
		ItemID:     msg.ItemID,
		BatchID:    msg.BatchID,
		SearchID:   msg.SearchID,
		EnqueuedAt: time.Now(),
	}
	return w.queue.PublishWorkItem(ctx, rabbitmq.QueuePreference, next)
}
