// Package loop runs a task repeatedly, carrying a value between rounds.
package loop

import (
	"context"
	"time"
)

// Next tells the loop what to do after a round.
//
// The zero value continues at once.
type Next struct {
	stop  bool
	err   error
	pause time.Duration
}

// Continue runs the next round after pause.
func Continue(pause time.Duration) Next {
	return Next{pause: pause}
}

// Break stops the loop. err is returned from Start as it is, and can be nil.
func Break(err error) Next {
	return Next{stop: true, err: err}
}

// Task is a round of loop.
//
// It receives the value of the last round (or the initial value).
type Task[T any] func(context.Context, T) (T, Next)

// Start calls task until it breaks or ctx is done.
//
// It returns the value of the last round, with the error of Break or ctx.Err().
// With a done ctx, task is never called.
func Start[T any](ctx context.Context, init T, task Task[T]) (T, error) {
	value := init
	for {
		if err := ctx.Err(); err != nil {
			return value, err
		}

		var next Next
		value, next = task(ctx, value)
		if next.stop {
			return value, next.err
		}
		if next.pause <= 0 {
			continue
		}

		timer := time.NewTimer(next.pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return value, ctx.Err()
		case <-timer.C:
		}
	}
}

// Drain passes values of ch to f, one by one, until ch is closed or ctx is done.
//
// It returns how many values are passed, and ctx.Err() if ctx is done.
func Drain[T any](ctx context.Context, ch <-chan T, f func(context.Context, T)) (uint64, error) {
	return Start(ctx, uint64(0), func(ctx context.Context, n uint64) (uint64, Next) {
		select {
		case <-ctx.Done():
			return n, Break(ctx.Err())
		case v, ok := <-ch:
			if !ok {
				return n, Break(nil)
			}
			f(ctx, v)
			return n + 1, Continue(0)
		}
	})
}
