package services

import (
	"context"
	"time"
)

// withTimeout bounds a blocking provider call. A non-positive d leaves only
// the parent deadline in place.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
