package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/fxquote/pkg/config"
	"github.com/amirasaad/fxquote/pkg/domain"
	"github.com/redis/go-redis/v9"
)

// RedisCache implements cache.Cache using Redis.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisCache creates a RedisCache from the REDIS_* settings. The
// connection is lazy; use Ping to check reachability.
func NewRedisCache(cfg *config.Redis, logger *slog.Logger) (*RedisCache, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opt.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opt.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opt.WriteTimeout = cfg.WriteTimeout
	}
	return NewRedisCacheWithOptions(opt, logger), nil
}

// NewRedisCacheWithOptions creates a RedisCache from redis.Options.
func NewRedisCacheWithOptions(opt *redis.Options, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{
		client: redis.NewClient(opt),
		logger: logger.With("component", "redis_cache"),
	}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("Redis cache miss", "key", key)
		return nil, nil // cache miss
	}
	if err != nil {
		r.logger.Error("Redis cache get error", "key", key, "error", err)
		return nil, fmt.Errorf("%w: get %s: %w", domain.ErrCacheUnavailable, key, err)
	}
	r.logger.Debug("Redis cache hit", "key", key)
	return val, nil
}

func (r *RedisCache) SetWithExpiry(
	ctx context.Context,
	key string,
	value []byte,
	ttl time.Duration,
) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Error("Redis cache set error", "key", key, "error", err)
		return fmt.Errorf("%w: set %s: %w", domain.ErrCacheUnavailable, key, err)
	}
	r.logger.Debug("Redis cache set", "key", key, "ttl", ttl)
	return nil
}

// Ping checks the Redis server is reachable.
func (r *RedisCache) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %w", domain.ErrCacheUnavailable, err)
	}
	return nil
}

// Close releases the connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
