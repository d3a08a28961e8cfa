package cache

import (
	"context"
	"testing"
	"time"

	"github.com/amirasaad/fxquote/pkg/config"
	"github.com/amirasaad/fxquote/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisCache starts a Redis container and returns a RedisCache bound to it.
func setupRedisCache(tb testing.TB) *RedisCache {
	tb.Helper()
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "redis:7.0.5",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		tb.Fatalf("Failed to start container: %v", err)
	}
	tb.Cleanup(func() { _ = container.Terminate(ctx) })

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		tb.Fatalf("Failed to get mapped port: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		tb.Fatalf("Failed to get container host: %v", err)
	}

	c, err := NewRedisCache(&config.Redis{URL: "redis://" + host + ":" + port.Port() + "/0"}, nil)
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisCache_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}
	c := setupRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	got, err := c.Get(ctx, "quote:USD")
	require.NoError(t, err)
	assert.Nil(t, got, "missing key is a miss, not an error")

	require.NoError(t, c.SetWithExpiry(ctx, "quote:USD", []byte(`{"currency":"USD","rate":5.23}`), time.Second))
	got, err = c.Get(ctx, "quote:USD")
	require.NoError(t, err)
	assert.JSONEq(t, `{"currency":"USD","rate":5.23}`, string(got))

	assert.Eventually(t, func() bool {
		v, err := c.Get(ctx, "quote:USD")
		return err == nil && v == nil
	}, 5*time.Second, 100*time.Millisecond, "entry expires after its ttl")
}

func TestRedisCache_UnreachableServer(t *testing.T) {
	c, err := NewRedisCache(&config.Redis{
		URL:         "redis://127.0.0.1:1/0",
		DialTimeout: 50 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	defer c.Close() //nolint:errcheck
	ctx := context.Background()

	_, err = c.Get(ctx, "quote:USD")
	require.ErrorIs(t, err, domain.ErrCacheUnavailable)

	err = c.SetWithExpiry(ctx, "quote:USD", []byte("x"), time.Minute)
	require.ErrorIs(t, err, domain.ErrCacheUnavailable)

	require.ErrorIs(t, c.Ping(ctx), domain.ErrCacheUnavailable)
}

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := NewRedisCache(&config.Redis{URL: "http://not-redis"}, nil)
	require.Error(t, err)
}
