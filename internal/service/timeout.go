package service

import (
	"context"
	"errors"
	"time"
)

// errCallTimeout marks a call abandoned because its deadline passed.
var errCallTimeout = errors.New("call timed out")

// callWithTimeout runs fn under a deadline of d (none when d <= 0) and
// returns as soon as the deadline passes even if fn ignores its context.
func callWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{val: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, errors.Join(errCallTimeout, r.err)
		}
		return r.val, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, errors.Join(errCallTimeout, ctx.Err())
		}
		return zero, ctx.Err()
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, errCallTimeout)
}
