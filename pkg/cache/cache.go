package cache

import (
	"context"
	"time"
)

// DefaultKeyPrefix namespaces quote entries in a shared key/value store.
const DefaultKeyPrefix = "quote:"

// Cache defines the key/value capability the quote service depends on.
//
// Get returns (nil, nil) for absent or expired keys. A non-nil error means the
// backend itself failed and wraps domain.ErrCacheUnavailable.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Pinger is implemented by backends that can report their own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Keys builds the cache keys for a normalized currency code.
type Keys struct {
	Prefix string
}

// Fresh returns the key holding the TTL-bound copy, e.g. quote:USD.
func (k Keys) Fresh(currency string) string {
	return k.prefix() + currency
}

// Stale returns the key holding the long-lived copy used for degraded reads.
func (k Keys) Stale(currency string) string {
	return k.prefix() + "stale:" + currency
}

func (k Keys) prefix() string {
	if k.Prefix == "" {
		return DefaultKeyPrefix
	}
	return k.Prefix
}
