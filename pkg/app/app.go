package app

import (
	"errors"
	"io"
	"log/slog"

	"github.com/amirasaad/fxquote/pkg/cache"
	"github.com/amirasaad/fxquote/pkg/config"
	"github.com/amirasaad/fxquote/pkg/provider"
	"github.com/amirasaad/fxquote/pkg/retry"
	"github.com/amirasaad/fxquote/pkg/service/quote"
	"github.com/prometheus/client_golang/prometheus"
)

// Deps contains the infrastructure the services are built from.
type Deps struct {
	QuoteProvider provider.QuoteProvider
	Cache         cache.Cache
	// StaleCache holds long-lived copies for degraded reads. Nil means the
	// stale tier re-reads Cache.
	StaleCache cache.Cache
	Recorder   quote.Recorder
	Gatherer   prometheus.Gatherer
	Logger     *slog.Logger

	closers []io.Closer
}

// AddCloser registers a resource released by Close, in reverse order.
func (d *Deps) AddCloser(c io.Closer) {
	d.closers = append(d.closers, c)
}

// Close releases every registered resource.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

type App struct {
	Deps         *Deps
	Config       *config.App
	QuoteService *quote.Service
}

func New(deps *Deps, cfg *config.App) (*App, error) {
	app := &App{
		Deps:   deps,
		Config: cfg,
	}

	opts := []quote.Option{}
	if deps.Recorder != nil {
		opts = append(opts, quote.WithRecorder(deps.Recorder))
	}

	svc, err := quote.New(
		deps.QuoteProvider,
		deps.Cache,
		deps.StaleCache,
		QuoteConfig(cfg),
		deps.Logger,
		opts...,
	)
	if err != nil {
		return nil, err
	}
	app.QuoteService = svc
	return app, nil
}

// QuoteConfig maps the QUOTE_* and UPSTREAM_* settings to the service policy.
func QuoteConfig(cfg *config.App) quote.Config {
	return quote.Config{
		CacheTTL: cfg.Quote.CacheTTL,
		StaleTTL: cfg.Quote.StaleTTL,
		Retry: retry.Plan{
			Attempts:  cfg.Quote.RetryAttempts,
			BaseDelay: cfg.Quote.RetryBaseDelay,
			MaxJitter: cfg.Quote.RetryMaxJitter,
		},
		AttemptTimeout: cfg.Upstream.Timeout,
		FallbackRate:   cfg.Quote.FallbackRate,
		KeyPrefix:      cfg.Quote.KeyPrefix,
	}
}
