// Package remote runs provider calls under an overall deadline.
//
// Every call to the embedding or completion backend goes through Do. The
// SDK client enforces its own per-attempt timeout; Do adds the outer bound
// so a hung attempt, or a chain of retries, can never hold the caller past
// the overall timeout.
package remote

import (
	"context"
	"time"
)

// Do runs fn on a worker goroutine and waits at most timeout for it.
// When the deadline passes first, the call is abandoned and the context
// error is returned; fn observes the cancellation through its context.
func Do[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
