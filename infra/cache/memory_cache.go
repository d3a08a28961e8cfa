package cache

import (
	"context"
	"sync"
	"time"
)

const defaultCleanupInterval = 5 * time.Minute

// MemoryCache implements cache.Cache using in-memory storage. It serves
// single-process deployments and tests.
type MemoryCache struct {
	cache map[string]*cacheEntry
	mu    sync.RWMutex
	now   func() time.Time

	cleanupInterval time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryOption customizes a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		c.now = now
	}
}

// WithCleanupInterval sets how often expired entries are evicted.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(c *MemoryCache) {
		if d > 0 {
			c.cleanupInterval = d
		}
	}
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		cache:           make(map[string]*cacheEntry),
		now:             time.Now,
		cleanupInterval: defaultCleanupInterval,
		stop:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.cleanup()

	return c
}

// Get returns a copy of the value under key, or nil if absent or expired.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.cache[key]
	if !exists || !c.now().Before(entry.expiresAt) {
		return nil, nil
	}
	return append([]byte(nil), entry.value...), nil
}

// SetWithExpiry stores value under key for ttl.
func (c *MemoryCache) SetWithExpiry(
	_ context.Context,
	key string,
	value []byte,
	ttl time.Duration,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[key] = &cacheEntry{
		value:     append([]byte(nil), value...),
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Ping always succeeds.
func (c *MemoryCache) Ping(context.Context) error {
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Close stops the cleanup goroutine.
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

// cleanup removes expired entries from cache
func (c *MemoryCache) cleanup() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *MemoryCache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, entry := range c.cache {
		if !now.Before(entry.expiresAt) {
			delete(c.cache, key)
		}
	}
}
