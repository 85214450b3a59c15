package pipeline

import (
	"context"

	"scout/internal/model"

	"github.com/rs/zerolog/log"
)

// Tracker reacts to ledger mutations and detects the last-item-finished
// transition. Workers call it after every completion claim, including
// duplicate claims that were no-ops, so a previously failed dispatch gets
// another chance on the next mutation.
type Tracker struct {
	store    Store
	notifier *Notifier
}

func NewTracker(store Store, notifier *Notifier) *Tracker {
	return &Tracker{store: store, notifier: notifier}
}

// OnLedgerChange evaluates the completion condition against the post-claim
// ledger. The notification is dispatched before the status flip: if the
// dispatch fails, the batch stays in processing so the reaper's sweep can
// still find it.
func (t *Tracker) OnLedgerChange(ctx context.Context, batch *model.Batch) error {
	if batch == nil {
		return nil
	}
	if batch.NotificationSent {
		return nil
	}
	if batch.CompletedJobs < batch.TotalJobs {
		return nil
	}

	requestID, err := t.notifier.Dispatch(ctx, batch.OwnerID, batch.ID)
	if err != nil {
		log.Error().
			Err(err).
			Str("batchID", batch.ID).
			Msg("Completion dispatch failed, leaving ledger unmarked for retry")
		return err
	}

	if batch.Status == model.BatchProcessing {
		if _, err := t.store.MarkBatchComplete(ctx, batch.ID); err != nil {
			return err
		}
	}

	log.Info().
		Str("batchID", batch.ID).
		Int("completedJobs", batch.CompletedJobs).
		Int("totalJobs", batch.TotalJobs).
		Str("requestID", requestID.Hex()).
		Msg("Batch completed")
	return nil
}
