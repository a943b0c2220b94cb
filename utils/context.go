package utils

import (
	"context"
	"time"
)

func ContextSleep(ctx context.Context, d time.Duration) *time.Time {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return nil
	case t := <-timer.C:
		return &t
	}
}

// RunEvery calls fn immediately and then after every interval d, until ctx is cancelled.
// Iterations never overlap, a slow fn delays the next call instead.
func RunEvery(ctx context.Context, d time.Duration, fn func(ctx context.Context)) {
	for {
		fn(ctx)
		if ContextSleep(ctx, d) == nil {
			return
		}
	}
}
