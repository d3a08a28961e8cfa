package provider

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirasaad/fxquote/pkg/config"
	"github.com/amirasaad/fxquote/pkg/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProvider(url string) *HTTPQuoteProvider {
	return NewHTTPQuoteProvider(&config.Upstream{
		URL:           url,
		Timeout:       time.Second,
		CurrencyParam: "currency",
		Name:          "provider",
	}, discardLogger())
}

func TestHTTPQuoteProvider_FetchQuote(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   error
		wantStatus int
		wantRate   string
	}{
		{
			name:     "success",
			status:   http.StatusOK,
			body:     `{"currency":"USD","rate":5.31,"source":"provider","latency_ms":120}`,
			wantRate: "5.31",
		},
		{
			name:     "rate as string",
			status:   http.StatusOK,
			body:     `{"currency":"USD","rate":"5.3100"}`,
			wantRate: "5.31",
		},
		{
			name:       "service unavailable",
			status:     http.StatusServiceUnavailable,
			body:       `{"detail":"temporarily unavailable"}`,
			wantKind:   domain.ErrUpstreamRejected,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "not found",
			status:     http.StatusNotFound,
			body:       `not found`,
			wantKind:   domain.ErrUpstreamRejected,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "missing rate",
			status:     http.StatusOK,
			body:       `{"currency":"USD","source":"provider"}`,
			wantKind:   domain.ErrMalformedResponse,
			wantStatus: http.StatusOK,
		},
		{
			name:       "not json",
			status:     http.StatusOK,
			body:       `<html>oops</html>`,
			wantKind:   domain.ErrMalformedResponse,
			wantStatus: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "USD", r.URL.Query().Get("currency"))
				assert.Equal(t, "application/json", r.Header.Get("Accept"))
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			q, err := newTestProvider(srv.URL+"/quote").FetchQuote(context.Background(), "USD")

			if tt.wantKind != nil {
				require.ErrorIs(t, err, tt.wantKind)
				var upErr *domain.UpstreamError
				require.ErrorAs(t, err, &upErr)
				assert.Equal(t, "provider", upErr.Provider)
				assert.Equal(t, tt.wantStatus, upErr.StatusCode)
				assert.Nil(t, q)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "USD", q.Currency)
			assert.True(t, q.Rate.Equal(decimal.RequireFromString(tt.wantRate)))
			assert.Empty(t, q.Source, "upstream source is never trusted")
		})
	}
}

func TestHTTPQuoteProvider_PassesThroughExtraFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"rate":5.23,"latency_ms":87}`)
	}))
	defer srv.Close()

	q, err := newTestProvider(srv.URL).FetchQuote(context.Background(), "EUR")
	require.NoError(t, err)
	assert.Equal(t, "EUR", q.Currency, "missing currency is filled from the request")
	assert.JSONEq(t, `87`, string(q.Extra["latency_ms"]))
}

func TestHTTPQuoteProvider_KeepsExistingQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "demo", r.URL.Query().Get("key"))
		assert.Equal(t, "BRL", r.URL.Query().Get("moeda"))
		_, _ = io.WriteString(w, `{"rate":1}`)
	}))
	defer srv.Close()

	p := NewHTTPQuoteProvider(&config.Upstream{
		URL:           srv.URL + "/cotacao?key=demo",
		Timeout:       time.Second,
		CurrencyParam: "moeda",
	}, nil)
	_, err := p.FetchQuote(context.Background(), "BRL")
	require.NoError(t, err)
	assert.Equal(t, "provider", p.Name())
}

func TestHTTPQuoteProvider_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestProvider(url).FetchQuote(context.Background(), "USD")
	require.ErrorIs(t, err, domain.ErrTransportFailure)
	assert.Equal(t, "transport_failure", domain.ErrorKind(err))
}

func TestHTTPQuoteProvider_DeadlineIsTransportFailure(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newTestProvider(srv.URL).FetchQuote(ctx, "USD")
	require.ErrorIs(t, err, domain.ErrTransportFailure)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
