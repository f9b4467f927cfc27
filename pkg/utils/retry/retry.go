package retry

import (
	"context"
	"time"
)

// Backoff is a (blocking) function returns when to retry.
//
// If context is canceled, Backoff should return ctx.Err().
type Backoff func(context.Context) error

// StaticBackoff returns a Backoff which waits for a fixed interval.
func StaticBackoff(interval time.Duration) Backoff {
	return ExponentialBackoff(interval, 1, interval)
}

// ExponentialBackoff returns a Backoff which waits with exponential backoff.
//
// For N-th call, it waits for min(initialInterval * r^N, max) or context to be done.
func ExponentialBackoff(initialInterval time.Duration, r float64, max time.Duration) Backoff {
	interval := initialInterval
	return func(ctx context.Context) error {
		timer := time.NewTimer(interval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			interval = time.Duration(float64(interval) * r)
			if max < interval {
				interval = max
			}
			return nil
		}
	}
}

// Blocking calls f until it returns nil or an error which is not retryable.
//
// Between calls, it waits with b.
// When b fails (for example, ctx is done), Blocking returns the last error of f.
func Blocking[T any](ctx context.Context, b Backoff, retryable func(error) bool, f func() (T, error)) (T, error) {
	for {
		last, err := f()
		if err == nil || !retryable(err) {
			return last, err
		}
		if berr := b(ctx); berr != nil {
			return last, err
		}
	}
}
