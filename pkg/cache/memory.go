package cache

import (
	"context"
	"sync"
	"time"
)

type memoryWindow struct {
	count    int64
	expireAt time.Time
}

// MemoryCache implements Counter in process memory. When full, the window closest
// to expiry is evicted.
type MemoryCache struct {
	mu      sync.Mutex
	data    map[string]*memoryWindow
	maxSize int
	now     func() time.Time
	ticker  *time.Ticker
	done    chan struct{}
	once    sync.Once
}

// NewMemoryCache creates an in-memory counter store.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         10000,
		CleanupInterval: time.Minute,
		Now:             time.Now,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		data:    make(map[string]*memoryWindow),
		maxSize: cfg.MaxSize,
		now:     cfg.Now,
		ticker:  time.NewTicker(cfg.CleanupInterval),
		done:    make(chan struct{}),
	}

	go mc.cleanupExpired()
	return mc
}

func (mc *MemoryCache) IncrWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := mc.now()
	w, ok := mc.data[key]
	if !ok || !now.Before(w.expireAt) {
		if !ok && len(mc.data) >= mc.maxSize {
			mc.evictSoonestLocked()
		}
		w = &memoryWindow{expireAt: now.Add(window)}
		mc.data[key] = w
	}
	w.count++
	return w.count, w.expireAt.Sub(now), nil
}

func (mc *MemoryCache) evictSoonestLocked() {
	var victim string
	var soonest time.Time
	for k, w := range mc.data {
		if victim == "" || w.expireAt.Before(soonest) {
			victim, soonest = k, w.expireAt
		}
	}
	if victim != "" {
		delete(mc.data, victim)
	}
}

// Len reports the number of tracked windows, including expired ones not yet swept.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.data)
}

func (mc *MemoryCache) cleanupExpired() {
	for {
		select {
		case <-mc.ticker.C:
			mc.sweep()
		case <-mc.done:
			return
		}
	}
}

func (mc *MemoryCache) sweep() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := mc.now()
	for k, w := range mc.data {
		if !now.Before(w.expireAt) {
			delete(mc.data, k)
		}
	}
}

// Close stops the cleanup goroutine.
func (mc *MemoryCache) Close() error {
	mc.once.Do(func() {
		mc.ticker.Stop()
		close(mc.done)
	})
	return nil
}
