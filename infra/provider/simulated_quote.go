package provider

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/amirasaad/fxquote/pkg/config"
	"github.com/amirasaad/fxquote/pkg/domain"
	"github.com/shopspring/decimal"
)

var (
	nonUSDFactor  = decimal.RequireFromString("0.2")
	errSimulated  = errors.New("service temporarily unavailable")
	simulatorName = "simulator"
)

// SimulatedQuoteProvider produces quotes with random latency and random
// failures. It backs the local provider service used to exercise the
// degraded tiers.
type SimulatedQuoteProvider struct {
	cfg    config.Simulator
	mu     sync.Mutex
	rand   *rand.Rand
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewSimulatedQuoteProvider creates a simulator. A nil rng uses a randomly
// seeded one.
func NewSimulatedQuoteProvider(
	cfg *config.Simulator,
	rng *rand.Rand,
	logger *slog.Logger,
) *SimulatedQuoteProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &SimulatedQuoteProvider{
		cfg:    *cfg,
		rand:   rng,
		logger: logger.With("provider", simulatorName),
		sleep:  sleepCtx,
	}
}

func (p *SimulatedQuoteProvider) Name() string {
	return simulatorName
}

// FetchQuote waits a random delay, then fails with probability FailProb or
// returns the base rate with a +/-2% variation.
func (p *SimulatedQuoteProvider) FetchQuote(ctx context.Context, currency string) (*domain.Quote, error) {
	delay := p.delay()
	if err := p.sleep(ctx, delay); err != nil {
		return nil, &domain.UpstreamError{Provider: simulatorName, Kind: domain.ErrTransportFailure, Err: err}
	}

	fail, jitter := p.roll()
	if p.cfg.ForceFail || fail < p.cfg.FailProb {
		p.logger.Debug("Simulated failure", "currency", currency, "latency", delay)
		return nil, &domain.UpstreamError{
			Provider:   simulatorName,
			Kind:       domain.ErrUpstreamRejected,
			StatusCode: http.StatusServiceUnavailable,
			Err:        errSimulated,
		}
	}

	code := domain.NormalizeCurrency(currency)
	base := p.cfg.BaseRate
	if code != "USD" {
		base = base.Mul(nonUSDFactor)
	}
	variation := decimal.NewFromFloat(0.98 + jitter*0.04)
	latency, _ := json.Marshal(delay.Milliseconds())

	return &domain.Quote{
		Currency: code,
		Rate:     base.Mul(variation).Round(4),
		Extra: map[string]json.RawMessage{
			"latency_ms": latency,
			"provider":   json.RawMessage(strconv.Quote(simulatorName)),
		},
	}, nil
}

// rand.Rand is not safe for concurrent use.
func (p *SimulatedQuoteProvider) roll() (float64, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rand.Float64(), p.rand.Float64()
}

func (p *SimulatedQuoteProvider) delay() time.Duration {
	lo, hi := p.cfg.MinDelay, p.cfg.MaxDelay
	if hi <= lo {
		return lo
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return lo + time.Duration(p.rand.Int64N(int64(hi-lo)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
