package initializer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	infra_cache "github.com/amirasaad/fxquote/infra/cache"
	"github.com/amirasaad/fxquote/infra/metrics"
	infra_provider "github.com/amirasaad/fxquote/infra/provider"
	"github.com/amirasaad/fxquote/pkg/app"
	"github.com/amirasaad/fxquote/pkg/cache"
	"github.com/amirasaad/fxquote/pkg/config"
	"github.com/amirasaad/fxquote/pkg/provider"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const startupPingTimeout = 2 * time.Second

// Option customizes InitializeDependencies.
type Option func(*options)

type options struct {
	logOutput     io.Writer
	registry      *prometheus.Registry
	quoteProvider provider.QuoteProvider
}

// WithLogOutput sends logs to w instead of stdout.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) {
		o.logOutput = w
	}
}

// WithRegistry registers metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithQuoteProvider replaces the HTTP upstream.
func WithQuoteProvider(p provider.QuoteProvider) Option {
	return func(o *options) {
		o.quoteProvider = p
	}
}

// InitializeDependencies initializes all the application dependencies
func InitializeDependencies(cfg *config.App, opts ...Option) (
	deps *app.Deps,
	err error,
) {
	o := options{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	deps = &app.Deps{}
	defer func() {
		if err != nil {
			_ = deps.Close()
			deps = nil
		}
	}()

	logger := setupLogger(cfg.Log, o.logOutput)
	deps.Logger = logger

	reg := o.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	deps.Recorder = metrics.NewQuoteMetrics(reg)
	deps.Gatherer = reg

	fresh, err := newFreshCache(cfg, logger, deps)
	if err != nil {
		return deps, fmt.Errorf("failed to initialize cache: %w", err)
	}
	deps.Cache = fresh

	stale, err := newStaleCache(cfg, fresh, logger, deps)
	if err != nil {
		return deps, fmt.Errorf("failed to initialize stale cache: %w", err)
	}
	deps.StaleCache = stale

	if o.quoteProvider != nil {
		deps.QuoteProvider = o.quoteProvider
	} else {
		deps.QuoteProvider = infra_provider.NewHTTPQuoteProvider(cfg.Upstream, logger)
	}

	logger.Info("Dependencies initialized",
		"cache_driver", cfg.Cache.Driver,
		"stale_driver", cfg.Cache.StaleDriver,
		"provider", deps.QuoteProvider.Name(),
	)
	return deps, nil
}

func newFreshCache(cfg *config.App, logger *slog.Logger, deps *app.Deps) (cache.Cache, error) {
	switch cfg.Cache.Driver {
	case config.CacheDriverMemory:
		c := infra_cache.NewMemoryCache()
		deps.AddCloser(c)
		logger.Info("Using in-memory cache")
		return c, nil
	case config.CacheDriverRedis:
		c, err := infra_cache.NewRedisCache(cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		deps.AddCloser(c)

		// an unreachable Redis is not fatal: lookups degrade to the upstream
		ctx, cancel := context.WithTimeout(context.Background(), startupPingTimeout)
		defer cancel()
		if err := c.Ping(ctx); err != nil {
			logger.Warn("Redis not reachable at startup", "url", config.MaskURL(cfg.Redis.URL), "error", err)
		} else {
			logger.Info("Connected to Redis", "url", config.MaskURL(cfg.Redis.URL))
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
}

func newStaleCache(
	cfg *config.App,
	fresh cache.Cache,
	logger *slog.Logger,
	deps *app.Deps,
) (cache.Cache, error) {
	switch cfg.Cache.StaleDriver {
	case config.StaleDriverShared:
		return fresh, nil
	case config.StaleDriverNone:
		return nil, nil
	case config.StaleDriverBolt:
		c, err := infra_cache.NewBoltCache(cfg.Cache.BoltPath, logger)
		if err != nil {
			return nil, err
		}
		deps.AddCloser(c)
		if _, err := c.Purge(context.Background()); err != nil {
			logger.Warn("Failed to purge expired stale quotes", "error", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown stale cache driver %q", cfg.Cache.StaleDriver)
	}
}
