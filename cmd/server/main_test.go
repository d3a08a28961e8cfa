package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/amirasaad/fxquote/infra/initializer"
	"github.com/amirasaad/fxquote/pkg/config"
	"github.com/amirasaad/fxquote/pkg/domain"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// TestMain runs before any tests and applies globally for all tests in the package.
func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

type MockQuoteProvider struct {
	mock.Mock
}

func (m *MockQuoteProvider) FetchQuote(ctx context.Context, currency string) (*domain.Quote, error) {
	args := m.Called(ctx, currency)
	if q := args.Get(0); q != nil {
		return q.(*domain.Quote), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockQuoteProvider) Name() string {
	return "mock"
}

type ServerTestSuite struct {
	suite.Suite
	provider *MockQuoteProvider
	app      *fiber.App
	cleanup  func() error
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (s *ServerTestSuite) SetupTest() {
	cfg := &config.App{
		Env:    "test",
		Server: &config.Server{Host: "127.0.0.1", Port: 0, ShutdownTimeout: time.Second},
		Log:    &config.Log{Format: "json"},
		Cache: &config.Cache{
			Driver:      config.CacheDriverMemory,
			StaleDriver: config.StaleDriverBolt,
			BoltPath:    s.T().TempDir() + "/stale.db",
		},
		Quote: &config.Quote{
			CacheTTL:        time.Minute,
			StaleTTL:        time.Hour,
			KeyPrefix:       "quote:",
			RetryAttempts:   2,
			RetryBaseDelay:  time.Millisecond,
			FallbackRate:    decimal.RequireFromString("5.00"),
			DefaultCurrency: "USD",
		},
		Upstream:  &config.Upstream{URL: "http://unused", Timeout: time.Second},
		RateLimit: &config.RateLimit{MaxRequests: 100, Window: time.Minute},
	}
	s.Require().NoError(cfg.Validate())

	s.provider = new(MockQuoteProvider)
	var err error
	s.app, s.cleanup, err = newServer(cfg,
		initializer.WithLogOutput(io.Discard),
		initializer.WithQuoteProvider(s.provider),
	)
	s.Require().NoError(err)
}

func (s *ServerTestSuite) TearDownTest() {
	s.Require().NoError(s.cleanup())
}

func (s *ServerTestSuite) TestRootRoute() {
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	s.Require().NoError(err)
	defer resp.Body.Close() //nolint:errcheck

	body, _ := io.ReadAll(resp.Body)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("fxquote API is running", string(body))
}

func (s *ServerTestSuite) TestQuoteDegradesToStaleCopy() {
	s.provider.On("FetchQuote", mock.Anything, "EUR").Return(&domain.Quote{
		Currency: "EUR",
		Rate:     decimal.RequireFromString("1.08"),
	}, nil).Once()
	s.provider.On("FetchQuote", mock.Anything, "EUR").Return(nil, domain.ErrTransportFailure)

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/quote?currency=EUR", nil))
	s.Require().NoError(err)
	s.Equal("live", resp.Header.Get("X-Quote-Source"))
	_ = resp.Body.Close()

	resp, err = s.app.Test(httptest.NewRequest(http.MethodGet, "/quote?currency=EUR&nocache=1", nil))
	s.Require().NoError(err)
	defer resp.Body.Close() //nolint:errcheck
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("stale-cache", resp.Header.Get("X-Quote-Source"))
}
