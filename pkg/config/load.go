package config

import (
	"fmt"
	"log/slog"

	"github.com/amirasaad/fxquote/pkg/domain"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func Load(envFilePath ...string) (*App, error) {
	logger := slog.Default()
	logger.Info("Loading environment variables")

	// If no specific paths provided, try default .env
	if len(envFilePath) == 0 {
		logger.Debug("No environment file specified, trying default .env")
		if err := godotenv.Load(); err != nil {
			logger.Warn("No .env file found in current directory")
		}
		return loadFromEnv()
	}

	// Try each provided path until we find a valid one
	for _, path := range envFilePath {
		logger.Debug("Looking for environment file", "path", path)
		foundPath, err := FindEnvTest(path)
		if err != nil {
			logger.Debug("Environment file not found", "path", path, "error", err)
			continue
		}

		logger.Info("Loading environment from file", "path", foundPath)
		if err := godotenv.Load(foundPath); err != nil {
			logger.Error("Failed to load environment file", "path", foundPath, "error", err)
			continue
		}

		return loadFromEnv()
	}

	logger.Info("No valid environment files found, using default .env")
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found in current directory")
	}
	return loadFromEnv()
}

func loadFromEnv() (*App, error) {
	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Default().Info("App config loaded",
		"env", cfg.Env,
		"cache_driver", cfg.Cache.Driver,
		"stale_driver", cfg.Cache.StaleDriver,
		"redis_url", MaskURL(cfg.Redis.URL),
		"upstream_url", cfg.Upstream.URL,
		"cache_ttl", cfg.Quote.CacheTTL,
		"retry_attempts", cfg.Quote.RetryAttempts,
		"retry_base_delay", cfg.Quote.RetryBaseDelay,
		"fallback_rate", cfg.Quote.FallbackRate,
	)
	return &cfg, nil
}

// Validate rejects configurations the quote service cannot run with. It is
// called by Load; callers building App by hand should call it themselves.
func (c *App) Validate() error {
	if c.Quote == nil || c.Cache == nil || c.Upstream == nil {
		return fmt.Errorf("config: quote, cache and upstream sections are required")
	}

	q := c.Quote
	if q.RetryAttempts < 1 {
		return fmt.Errorf("config: QUOTE_RETRY_ATTEMPTS must be >= 1, got %d", q.RetryAttempts)
	}
	if q.RetryBaseDelay <= 0 {
		return fmt.Errorf("config: QUOTE_RETRY_BASE_DELAY must be positive, got %s", q.RetryBaseDelay)
	}
	if q.RetryMaxJitter < 0 {
		return fmt.Errorf("config: QUOTE_RETRY_MAX_JITTER must not be negative, got %s", q.RetryMaxJitter)
	}
	if q.CacheTTL <= 0 {
		return fmt.Errorf("config: QUOTE_CACHE_TTL must be positive, got %s", q.CacheTTL)
	}
	if q.StaleTTL <= 0 {
		return fmt.Errorf("config: QUOTE_STALE_TTL must be positive, got %s", q.StaleTTL)
	}
	if !q.FallbackRate.IsPositive() {
		return fmt.Errorf("config: QUOTE_FALLBACK_RATE: %w: got %s", domain.ErrNoFallbackRate, q.FallbackRate)
	}
	if err := domain.ValidateCurrency(domain.NormalizeCurrency(q.DefaultCurrency)); err != nil {
		return fmt.Errorf("config: QUOTE_DEFAULT_CURRENCY: %w", err)
	}

	switch c.Cache.Driver {
	case CacheDriverRedis, CacheDriverMemory:
	default:
		return fmt.Errorf("config: unknown CACHE_DRIVER %q", c.Cache.Driver)
	}
	switch c.Cache.StaleDriver {
	case StaleDriverShared, StaleDriverNone:
	case StaleDriverBolt:
		if c.Cache.BoltPath == "" {
			return fmt.Errorf("config: CACHE_BOLT_PATH is required for the bolt stale driver")
		}
	default:
		return fmt.Errorf("config: unknown CACHE_STALE_DRIVER %q", c.Cache.StaleDriver)
	}

	if c.Upstream.URL == "" {
		return fmt.Errorf("config: UPSTREAM_URL is required")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("config: UPSTREAM_TIMEOUT must be positive, got %s", c.Upstream.Timeout)
	}
	return nil
}
