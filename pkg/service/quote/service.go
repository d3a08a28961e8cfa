package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/fxquote/pkg/cache"
	"github.com/amirasaad/fxquote/pkg/domain"
	"github.com/amirasaad/fxquote/pkg/provider"
	"github.com/amirasaad/fxquote/pkg/retry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cache operation labels reported to the Recorder.
const (
	OpGet      = "get"
	OpSet      = "set"
	OpGetStale = "get_stale"
	OpSetStale = "set_stale"
	OpDecode   = "decode"

	OutcomeSuccess = "success"
)

// Recorder receives per-lookup observations. Implementations must be safe for
// concurrent use.
type Recorder interface {
	QuoteServed(source domain.Source, elapsed time.Duration)
	UpstreamAttempt(outcome string)
	CacheError(op string)
}

type nopRecorder struct{}

func (nopRecorder) QuoteServed(domain.Source, time.Duration) {}
func (nopRecorder) UpstreamAttempt(string)                   {}
func (nopRecorder) CacheError(string)                        {}

// Config holds the lookup policy.
type Config struct {
	// CacheTTL is how long a live quote is served from the fresh tier.
	CacheTTL time.Duration
	// StaleTTL is how long the long-lived copy stays readable for degraded
	// answers. Only used when a stale store is configured.
	StaleTTL time.Duration
	// Retry bounds the upstream calls of one lookup.
	Retry retry.Plan
	// AttemptTimeout bounds every single upstream call.
	AttemptTimeout time.Duration
	// FallbackRate is served when neither upstream nor cache can answer.
	FallbackRate decimal.Decimal
	// KeyPrefix namespaces cache keys. Defaults to cache.DefaultKeyPrefix.
	KeyPrefix string
}

// Option customizes a Service.
type Option func(*Service)

// WithRecorder plugs in a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithJitter replaces the retry jitter source.
func WithJitter(fn func() time.Duration) Option {
	return func(s *Service) {
		s.jitter = fn
	}
}

// Service answers quote lookups through four tiers: fresh cache, live
// upstream with retries, stale cache, static fallback.
type Service struct {
	provider provider.QuoteProvider
	fresh    cache.Cache
	stale    cache.Cache
	keys     cache.Keys
	cfg      Config
	logger   *slog.Logger
	recorder Recorder
	jitter   func() time.Duration
}

// New creates a quote service. stale may be nil, in which case the degraded
// read re-reads the fresh key and only finds entries that have not expired yet.
// Configuration problems are reported here so they surface at startup rather
// than per request.
func New(
	quoteProvider provider.QuoteProvider,
	fresh cache.Cache,
	stale cache.Cache,
	cfg Config,
	logger *slog.Logger,
	opts ...Option,
) (*Service, error) {
	if quoteProvider == nil {
		return nil, errors.New("quote provider is required")
	}
	if fresh == nil {
		return nil, errors.New("cache is required")
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, err
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("cache TTL must be positive, got %s", cfg.CacheTTL)
	}
	if stale != nil && cfg.StaleTTL <= 0 {
		return nil, fmt.Errorf("stale TTL must be positive, got %s", cfg.StaleTTL)
	}
	if !cfg.FallbackRate.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", domain.ErrNoFallbackRate, cfg.FallbackRate)
	}

	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		provider: quoteProvider,
		fresh:    fresh,
		stale:    stale,
		keys:     cache.Keys{Prefix: cfg.KeyPrefix},
		cfg:      cfg,
		logger:   logger.With("service", "Quote"),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetQuote returns the current quote for currency. It never fails: the
// Source of the returned quote tells how degraded the answer is.
func (s *Service) GetQuote(
	ctx context.Context,
	currency string,
	bypassCache bool,
) *domain.Quote {
	start := time.Now()
	code := domain.NormalizeCurrency(currency)
	log := s.logger.With("currency", code, "lookup_id", uuid.NewString())

	if bypassCache {
		log.Debug("Cache bypass requested")
	} else if q := s.read(ctx, log, s.fresh, s.keys.Fresh(code), OpGet); q != nil {
		log.Debug("Quote served from cache", "tier", domain.SourceCache, "rate", q.Rate)
		return s.serve(q, code, domain.SourceCache, start)
	}

	q, err := s.fetchLive(ctx, log, code)
	if err == nil {
		// A quote that was fetched is cached even if the caller has gone.
		s.store(context.WithoutCancel(ctx), log, code, q)
		log.Info("Quote served from upstream", "tier", domain.SourceLive, "rate", q.Rate)
		return s.serve(q, code, domain.SourceLive, start)
	}

	log.Warn("Upstream unavailable, degrading",
		"provider", s.provider.Name(),
		"attempts", s.cfg.Retry.Attempts,
		"error", err,
		"error_kind", domain.ErrorKind(err),
	)

	// Degraded reads outlive a cancelled caller so a quote is still produced.
	readCtx := context.WithoutCancel(ctx)
	if q := s.readStale(readCtx, log, code); q != nil {
		log.Warn("Quote served from stale cache", "tier", domain.SourceStaleCache, "rate", q.Rate)
		return s.serve(q, code, domain.SourceStaleCache, start)
	}

	log.Warn("No cached quote available, serving fallback",
		"tier", domain.SourceFallback,
		"rate", s.cfg.FallbackRate,
	)
	return s.serve(domain.NewFallbackQuote(code, s.cfg.FallbackRate), code, domain.SourceFallback, start)
}

func (s *Service) fetchLive(
	ctx context.Context,
	log *slog.Logger,
	code string,
) (*domain.Quote, error) {
	return retry.Do(ctx, s.cfg.Retry,
		func(ctx context.Context, attempt int) (*domain.Quote, error) {
			q, err := s.provider.FetchQuote(ctx, code)
			if err == nil {
				err = q.Validate()
			}
			if err != nil {
				s.recorder.UpstreamAttempt(domain.ErrorKind(err))
				return nil, err
			}
			s.recorder.UpstreamAttempt(OutcomeSuccess)
			return q, nil
		},
		retry.WithAttemptTimeout(s.cfg.AttemptTimeout),
		retry.WithJitter(s.jitter),
		retry.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			log.Warn("Upstream attempt failed, backing off",
				"attempt", attempt+1,
				"attempts", s.cfg.Retry.Attempts,
				"delay", delay,
				"error", err,
				"error_kind", domain.ErrorKind(err),
			)
		}),
	)
}

// store writes the fresh copy and, when a stale store is configured, the
// long-lived copy, both keyed and labelled with the requested code. Failures
// are logged and swallowed.
func (s *Service) store(
	ctx context.Context,
	log *slog.Logger,
	code string,
	q *domain.Quote,
) {
	entry := q.WithSource(domain.SourceLive)
	if entry.Currency != code {
		if entry.Currency != "" {
			log.Warn("Upstream answered for a different currency, keeping requested code",
				"upstream_currency", entry.Currency)
		}
		entry.Currency = code
	}
	data, err := json.Marshal(entry)
	if err != nil {
		log.Error("Failed to encode quote for cache", "error", err)
		s.recorder.CacheError(OpSet)
		return
	}

	key := s.keys.Fresh(code)
	if err := s.fresh.SetWithExpiry(ctx, key, data, s.cfg.CacheTTL); err != nil {
		log.Error("Failed to cache quote", "key", key, "error", err)
		s.recorder.CacheError(OpSet)
	}

	if s.stale == nil {
		return
	}
	staleKey := s.keys.Stale(code)
	if err := s.stale.SetWithExpiry(ctx, staleKey, data, s.cfg.StaleTTL); err != nil {
		log.Error("Failed to store stale copy", "key", staleKey, "error", err)
		s.recorder.CacheError(OpSetStale)
	}
}

func (s *Service) readStale(
	ctx context.Context,
	log *slog.Logger,
	code string,
) *domain.Quote {
	if s.stale == nil {
		return s.read(ctx, log, s.fresh, s.keys.Fresh(code), OpGet)
	}
	return s.read(ctx, log, s.stale, s.keys.Stale(code), OpGetStale)
}

// read returns the decoded entry under key, or nil on miss, backend failure
// or an undecodable entry.
func (s *Service) read(
	ctx context.Context,
	log *slog.Logger,
	c cache.Cache,
	key string,
	op string,
) *domain.Quote {
	data, err := c.Get(ctx, key)
	if err != nil {
		log.Warn("Cache read failed, treating as miss", "key", key, "error", err)
		s.recorder.CacheError(op)
		return nil
	}
	if data == nil {
		log.Debug("Cache miss", "key", key)
		return nil
	}

	var q domain.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		log.Warn("Discarding undecodable cache entry", "key", key, "error", err)
		s.recorder.CacheError(OpDecode)
		return nil
	}
	return &q
}

func (s *Service) serve(
	q *domain.Quote,
	code string,
	source domain.Source,
	start time.Time,
) *domain.Quote {
	out := q.WithSource(source)
	out.Currency = code
	s.recorder.QuoteServed(source, time.Since(start))
	return out
}
