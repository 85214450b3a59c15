package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// Config controls the exponential backoff schedule
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64

	// RetryIf decides whether an error is worth retrying. Nil means retry
	// every error.
	RetryIf func(error) bool
}

// Jitter bounds applied to every computed delay
const (
	jitterMin = 0.85
	jitterMax = 1.15
)

// sleep is swapped out in tests
var sleep = sleepCtx

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Delay computes the backoff delay for the given zero-based attempt,
// jittered uniformly within [0.85, 1.15] and capped at MaxDelay.
func (c Config) Delay(attempt int) time.Duration {
	jitter := jitterMin + rand.Float64()*(jitterMax-jitterMin)
	d := float64(c.InitialDelay) * math.Pow(c.Factor, float64(attempt)) * jitter
	if max := float64(c.MaxDelay); c.MaxDelay > 0 && d > max {
		d = max
	}
	return time.Duration(d)
}

// Do runs op, retrying up to MaxRetries additional times with exponential
// backoff and jitter. The error from the last attempt is returned unchanged
// after exhaustion.
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}

		if attempt >= cfg.MaxRetries {
			return err
		}
		if cfg.RetryIf != nil && !cfg.RetryIf(err) {
			return err
		}

		delay := cfg.Delay(attempt)
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_retries", cfg.MaxRetries).
			Dur("delay", delay).
			Msg("Operation failed, backing off before retry")

		if serr := sleep(ctx, delay); serr != nil {
			return err
		}
	}
}
