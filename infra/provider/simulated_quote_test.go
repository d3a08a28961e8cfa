package provider

import (
	"context"
	"math/rand/v2"
	"net/http"
	"testing"
	"time"

	"github.com/amirasaad/fxquote/pkg/config"
	"github.com/amirasaad/fxquote/pkg/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simulatorConfig() *config.Simulator {
	return &config.Simulator{
		FailProb: 0,
		BaseRate: decimal.RequireFromString("5.00"),
	}
}

func TestSimulatedQuoteProvider_RateWithinVariation(t *testing.T) {
	p := NewSimulatedQuoteProvider(simulatorConfig(), rand.New(rand.NewPCG(1, 2)), discardLogger())

	lo := decimal.RequireFromString("4.9")
	hi := decimal.RequireFromString("5.1")
	for range 100 {
		q, err := p.FetchQuote(context.Background(), "usd")
		require.NoError(t, err)
		require.NoError(t, q.Validate())
		assert.Equal(t, "USD", q.Currency)
		assert.True(t, q.Rate.GreaterThanOrEqual(lo) && q.Rate.LessThanOrEqual(hi), "rate %s", q.Rate)
		assert.Contains(t, q.Extra, "latency_ms")
	}
}

func TestSimulatedQuoteProvider_OtherCurrenciesUseFactor(t *testing.T) {
	p := NewSimulatedQuoteProvider(simulatorConfig(), rand.New(rand.NewPCG(3, 4)), discardLogger())

	q, err := p.FetchQuote(context.Background(), "EUR")
	require.NoError(t, err)
	assert.True(t, q.Rate.LessThan(decimal.RequireFromString("1.03")), "rate %s", q.Rate)
	assert.True(t, q.Rate.GreaterThan(decimal.RequireFromString("0.97")), "rate %s", q.Rate)
}

func TestSimulatedQuoteProvider_ForceFail(t *testing.T) {
	cfg := simulatorConfig()
	cfg.ForceFail = true
	p := NewSimulatedQuoteProvider(cfg, nil, discardLogger())

	_, err := p.FetchQuote(context.Background(), "USD")
	require.ErrorIs(t, err, domain.ErrUpstreamRejected)
	var upErr *domain.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusServiceUnavailable, upErr.StatusCode)
}

func TestSimulatedQuoteProvider_DelayHonorsContext(t *testing.T) {
	cfg := simulatorConfig()
	cfg.MinDelay = time.Second
	cfg.MaxDelay = time.Second
	p := NewSimulatedQuoteProvider(cfg, nil, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.FetchQuote(ctx, "USD")
	require.ErrorIs(t, err, domain.ErrTransportFailure)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
