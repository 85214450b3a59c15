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

// PreferenceWorker is the second scoring stage. It recomputes an adjusted
// score from the basics score and the preference fit; items that fall at or
// below the threshold stop here with a placeholder summary.
type PreferenceWorker struct {
	store     pipeline.Store
	queue     pipeline.Queue
	scorer    scoring.Scorer
	profiles  pipeline.Profiles
	tracker   *pipeline.Tracker
	threshold int
}

func NewPreferenceWorker(store pipeline.Store, queue pipeline.Queue, scorer scoring.Scorer, profiles pipeline.Profiles, tracker *pipeline.Tracker, threshold int) *PreferenceWorker {
	if threshold <= 0 {
		threshold = 50
	}
	return &PreferenceWorker{
		store:     store,
		queue:     queue,
		scorer:    scorer,
		profiles:  profiles,
		tracker:   tracker,
		threshold: threshold,
	}
}

// Queue implements Handler
func (w *PreferenceWorker) Queue() string {
	return rabbitmq.QueuePreference
}

// Handle implements Handler
func (w *PreferenceWorker) Handle(ctx context.Context, msg model.WorkItem) error {
	item, err := w.store.GetItemByID(ctx, msg.ItemID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return pipeline.Permanent("item %s not found", msg.ItemID)
		}
		return err
	}

	if err := checkStage(item, model.StagePreferenceStop, model.StagePreferenceForward); err != nil {
		return err
	}
	if item.BasicsScore == nil {
		return pipeline.Permanent("item %s reached preference stage without a basics score", msg.ItemID)
	}

	profile, err := loadProfile(ctx, w.profiles, msg.OwnerID)
	if err != nil {
		return err
	}

	text, err := w.scorer.Score(ctx, buildPrompt(profile, item), preferenceInstructions)
	if err != nil {
		return pipeline.Permanent("preference scoring failed for item %s: %v", msg.ItemID, err)
	}

	result, err := parseScore(text)
	if err != nil {
		return err
	}

	adjusted := AdjustScore(*item.BasicsScore, result.Score)
	forward := adjusted > w.threshold

	stage := model.StagePreferenceStop
	if forward {
		stage = model.StagePreferenceForward
	}

	if err := w.store.SavePreferenceResult(ctx, msg.ItemID, result.Score, adjusted, result.Reasons, stage); err != nil {
		return err
	}

	log.Debug().
		Str("itemID", msg.ItemID).
		Int("basicsScore", *item.BasicsScore).
		Int("preferenceScore", result.Score).
		Int("adjustedScore", adjusted).
		Bool("forward", forward).
		Msg("Preference stage scored")

	if !forward {
		// No summary stage for this item, but it still gets summary text
		if err := w.store.SaveSummary(ctx, msg.ItemID, placeholderSummary(adjusted), model.StagePreferenceStop); err != nil {
			return err
		}
	}

	if msg.BatchID == "" {
		if forward {
			return w.forward(ctx, msg)
		}
		return nil
	}

	claimed, err := w.store.ClaimStage(ctx, msg.BatchID, msg.ItemID, stage)
	if err != nil {
		return err
	}

	if forward {
		if !claimed {
			return nil
		}
		return w.forward(ctx, msg)
	}

	batch, _, err := w.store.ClaimItemCompleted(ctx, msg.BatchID, msg.ItemID)
	if err != nil {
		return err
	}
	return w.tracker.OnLedgerChange(ctx, batch)
}

// forward publishes to the summary queue after the preference write committed
func (w *PreferenceWorker) forward(ctx context.Context, msg model.WorkItem) error {
	next := model.WorkItem{
		OwnerID:    msg.OwnerID,
		ItemID:     msg.ItemID,
		BatchID:    msg.BatchID,
		SearchID:   msg.SearchID,
		EnqueuedAt: time.Now(),
	}
	return w.queue.PublishWorkItem(ctx, rabbitmq.QueueSummary, next)
}
