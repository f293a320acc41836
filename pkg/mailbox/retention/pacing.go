package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Pacer spaces out consecutive batches of one category so a large
// cleanup does not saturate the mail store.
type Pacer interface {
	// Wait blocks until the next batch may start or ctx is done.
	Wait(ctx context.Context) error
}

// BackoffPacer paces batches with delays drawn from a backoff policy.
type BackoffPacer struct {
	b backoff.BackOff
}

// NewFixedPacer waits the same interval between every batch. A zero
// interval disables pacing.
func NewFixedPacer(interval time.Duration) *BackoffPacer {
	return &BackoffPacer{b: backoff.NewConstantBackOff(interval)}
}

// NewExponentialPacer grows the delay from initial up to max, so short
// cleanups stay fast and long ones slow down.
func NewExponentialPacer(initial, max time.Duration) *BackoffPacer {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = initial
	eb.MaxInterval = max
	eb.MaxElapsedTime = 0
	eb.RandomizationFactor = 0
	eb.Reset()
	return &BackoffPacer{b: eb}
}

// Wait implements Pacer.
func (p *BackoffPacer) Wait(ctx context.Context) error {
	d := p.b.NextBackOff()
	if d == backoff.Stop || d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PacingConfig selects the pacing strategy.
type PacingConfig struct {
	// Strategy is "fixed" or "exponential". Default: fixed
	Strategy string

	// Interval is the fixed delay, or the initial delay for exponential.
	Interval time.Duration

	// MaxInterval caps exponential pacing. Default: 10 × Interval
	MaxInterval time.Duration
}

// NewPacerFactory returns a constructor producing one fresh Pacer per
// category run.
func NewPacerFactory(cfg PacingConfig) (func() Pacer, error) {
	switch cfg.Strategy {
	case "", "fixed":
		return func() Pacer { return NewFixedPacer(cfg.Interval) }, nil
	case "exponential":
		max := cfg.MaxInterval
		if max <= 0 {
			max = 10 * cfg.Interval
		}
		return func() Pacer { return NewExponentialPacer(cfg.Interval, max) }, nil
	default:
		return nil, fmt.Errorf("unknown pacing strategy %q", cfg.Strategy)
	}
}

// retryFetch runs op with exponential backoff, giving up after retries
// additional attempts. Context errors are not retried.
func retryFetch(ctx context.Context, retries uint64, initial time.Duration, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = initial
	eb.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		err := op()
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(eb, retries), ctx))
}
