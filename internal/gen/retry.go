package gen

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy bounds retries of a failed generation call with
// exponential backoff. The policy applies per node invocation, not per
// raw call: one node retrying is one sequence of attempts.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	BackoffFactor   float64
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns the default retry settings.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		BackoffFactor:   2.0,
		MaxInterval:     10 * time.Second,
	}
}

// Do runs fn until it succeeds, ctx is done, or attempts are
// exhausted. The last error is returned wrapped with the attempt count.
func (r RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	interval := r.InitialInterval
	if interval <= 0 {
		interval = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		interval = time.Duration(float64(interval) * r.BackoffFactor)
		if r.MaxInterval > 0 && interval > r.MaxInterval {
			interval = r.MaxInterval
		}
	}

	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
