package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/amirasaad/fxquote/pkg/domain"
	"go.etcd.io/bbolt"
)

var quotesBucket = []byte("quotes")

const expiryHeaderLen = 8

// BoltCache implements cache.Cache on a local bbolt file. It keeps the
// long-lived stale copies so degraded answers survive restarts and Redis
// outages. Values are stored as an 8-byte big-endian expiry (unix nanos)
// followed by the payload.
type BoltCache struct {
	db     *bbolt.DB
	now    func() time.Time
	logger *slog.Logger
}

// BoltOption customizes a BoltCache.
type BoltOption func(*BoltCache)

// WithBoltClock replaces time.Now, mostly for tests.
func WithBoltClock(now func() time.Time) BoltOption {
	return func(c *BoltCache) {
		c.now = now
	}
}

// NewBoltCache opens (or creates) the database file at path.
func NewBoltCache(path string, logger *slog.Logger, opts ...BoltOption) (*BoltCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("could not create db dir: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o660, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(quotesBucket); err != nil {
			return fmt.Errorf("could not create bucket: %s, err: %w", string(quotesBucket), err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	c := &BoltCache{
		db:     db,
		now:    time.Now,
		logger: logger.With("component", "bolt_cache", "path", path),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *BoltCache) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte

	err := c.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(quotesBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		if len(raw) < expiryHeaderLen {
			c.logger.Warn("Ignoring truncated entry", "key", key)
			return nil
		}

		expiresAt := int64(binary.BigEndian.Uint64(raw[:expiryHeaderLen]))
		if c.now().UnixNano() >= expiresAt {
			return nil
		}
		// raw is only valid inside the transaction
		value = append([]byte(nil), raw[expiryHeaderLen:]...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: bolt get %s: %w", domain.ErrCacheUnavailable, key, err)
	}
	return value, nil
}

func (c *BoltCache) SetWithExpiry(
	_ context.Context,
	key string,
	value []byte,
	ttl time.Duration,
) error {
	buf := make([]byte, expiryHeaderLen+len(value))
	binary.BigEndian.PutUint64(buf, uint64(c.now().Add(ttl).UnixNano()))
	copy(buf[expiryHeaderLen:], value)

	err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(quotesBucket).Put([]byte(key), buf)
	})
	if err != nil {
		return fmt.Errorf("%w: bolt set %s: %w", domain.ErrCacheUnavailable, key, err)
	}
	return nil
}

// Purge deletes expired entries and returns how many were removed.
func (c *BoltCache) Purge(context.Context) (int, error) {
	now := c.now().UnixNano()
	removed := 0

	err := c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(quotesBucket)
		var expired [][]byte
		// deleting through the cursor while iterating skips entries
		err := bucket.ForEach(func(k, v []byte) error {
			if len(v) < expiryHeaderLen || int64(binary.BigEndian.Uint64(v[:expiryHeaderLen])) <= now {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		removed = len(expired)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: bolt purge: %w", domain.ErrCacheUnavailable, err)
	}
	if removed > 0 {
		c.logger.Info("Purged expired stale quotes", "removed", removed)
	}
	return removed, nil
}

func (c *BoltCache) Close() error {
	return c.db.Close()
}
