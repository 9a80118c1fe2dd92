// Package bounded runs a blocking call under a hard latency budget.
package bounded

import (
	"context"
	"fmt"
	"time"
)

// Call runs fn with a context that expires after timeout and returns as soon
// as either fn finishes or the budget elapses, whichever is first. When the
// budget elapses Call returns context.DeadlineExceeded without waiting for
// fn, which keeps running until it observes its cancelled context. A
// non-positive timeout applies no budget beyond ctx.
func Call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		var r result
		defer func() {
			if p := recover(); p != nil {
				r.err = fmt.Errorf("bounded: panic: %v", p)
			}
			ch <- r
		}()
		r.v, r.err = fn(ctx)
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
