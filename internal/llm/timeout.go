package llm

import (
	"context"
	"errors"
	"time"
)

// WithTimeout races fn against a deadline of d. When the deadline fires first
// the result is a *TimeoutError; cancellation of the parent ctx is returned
// as-is. Only fn's context is cancelled, never the caller's.
func WithTimeout[T any](ctx context.Context, operation string, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(callCtx)
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, &TimeoutError{Operation: operation, Duration: d}
		}
		return r.val, r.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, &TimeoutError{Operation: operation, Duration: d}
	}
}
