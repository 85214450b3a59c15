package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Reaper force-terminates batches stuck in processing past the stale cutoff
// and pushes them through the same idempotent notification dispatch as the
// completion path. It is the only liveness guarantee for abandoned work.
type Reaper struct {
	store      Store
	notifier   *Notifier
	interval   time.Duration
	staleAfter time.Duration
}

func NewReaper(store Store, notifier *Notifier, interval, staleAfter time.Duration) *Reaper {
	return &Reaper{
		store:      store,
		notifier:   notifier,
		interval:   interval,
		staleAfter: staleAfter,
	}
}

// Run sweeps on a fixed schedule until the context is cancelled
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", r.interval).
		Dur("stale_after", r.staleAfter).
		Msg("Stale batch reaper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stale batch reaper stopped")
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				log.Error().Err(err).Msg("Reaper sweep failed")
			}
		}
	}
}

// Sweep times out every stale batch and returns how many were reaped
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-r.staleAfter)

	stale, err := r.store.FindStaleBatches(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	reaped := 0
	for _, batch := range stale {
		// Race guard: a concurrently completing handler claims the request
		// id first, and such batches are not ours to touch
		if batch.NotificationRequestID != nil {
			continue
		}

		note := fmt.Sprintf("processed %d/%d", batch.CompletedJobs, batch.TotalJobs)
		timedOut, err := r.store.MarkBatchTimedOut(ctx, batch.ID, note)
		if err != nil {
			log.Error().Err(err).Str("batchID", batch.ID).Msg("Failed to time out stale batch")
			continue
		}
		if !timedOut {
			// Lost the race between query and update
			continue
		}

		if _, err := r.notifier.Dispatch(ctx, batch.OwnerID, batch.ID); err != nil {
			log.Error().Err(err).Str("batchID", batch.ID).Msg("Failed to dispatch timeout notification")
			continue
		}

		log.Warn().
			Str("batchID", batch.ID).
			Str("note", note).
			Msg("Stale batch reaped")
		reaped++
	}

	return reaped, nil
}
