package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"KalshiFlow/pkg/cache"
)

// WindowLimiter allows max requests per key per fixed window, counted in a
// shared cache.Counter so replicas enforce one budget.
type WindowLimiter struct {
	store  cache.Counter
	prefix string
	max    int64
	window time.Duration
}

// NewWindowLimiter creates a fixed-window limiter.
func NewWindowLimiter(store cache.Counter, prefix string, max int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{store: store, prefix: prefix, max: int64(max), window: window}
}

func (w *WindowLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	n, left, err := w.store.IncrWindow(ctx, cache.GenerateKeyWithParams(w.prefix, key), w.window)
	if err != nil {
		return false, 0, fmt.Errorf("rate limit counter: %w", err)
	}
	if n <= w.max {
		return true, 0, nil
	}
	return false, int(math.Max(1, math.Ceil(left.Seconds()))), nil
}
