package cache

import (
	"context"
	"time"
)

// Counter is a fixed-window counter store. The first increment of a key opens
// its window; the key expires when the window closes.
type Counter interface {
	// IncrWindow increments key and returns the new count together with the
	// time left until the window resets.
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Close() error
}
