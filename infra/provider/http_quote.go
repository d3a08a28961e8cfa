package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/amirasaad/fxquote/pkg/config"
	"github.com/amirasaad/fxquote/pkg/domain"
)

const maxErrorBody = 256

// HTTPQuoteProvider implements provider.QuoteProvider against a JSON HTTP
// endpoint answering GET {url}?{param}={CURRENCY} with at least a rate field.
type HTTPQuoteProvider struct {
	name          string
	baseURL       string
	currencyParam string
	httpClient    *http.Client
	logger        *slog.Logger
}

// NewHTTPQuoteProvider creates a provider from the UPSTREAM_* settings. The
// client timeout is a backstop; each attempt is bounded by its context.
func NewHTTPQuoteProvider(cfg *config.Upstream, logger *slog.Logger) *HTTPQuoteProvider {
	return NewHTTPQuoteProviderWithClient(cfg, &http.Client{Timeout: cfg.Timeout}, logger)
}

// NewHTTPQuoteProviderWithClient is NewHTTPQuoteProvider with a caller
// supplied client.
func NewHTTPQuoteProviderWithClient(
	cfg *config.Upstream,
	client *http.Client,
	logger *slog.Logger,
) *HTTPQuoteProvider {
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = "provider"
	}
	param := cfg.CurrencyParam
	if param == "" {
		param = "currency"
	}
	return &HTTPQuoteProvider{
		name:          name,
		baseURL:       cfg.URL,
		currencyParam: param,
		httpClient:    client,
		logger:        logger.With("provider", name),
	}
}

func (p *HTTPQuoteProvider) Name() string {
	return p.name
}

// FetchQuote performs one upstream call. It never retries.
func (p *HTTPQuoteProvider) FetchQuote(ctx context.Context, currency string) (*domain.Quote, error) {
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, p.fail(domain.ErrTransportFailure, 0, fmt.Errorf("invalid upstream URL: %w", err))
	}
	q := u.Query()
	q.Set(p.currencyParam, currency)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, p.fail(domain.ErrTransportFailure, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, p.fail(domain.ErrTransportFailure, 0, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, p.fail(domain.ErrUpstreamRejected, resp.StatusCode,
			fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body)))
	}

	var quote domain.Quote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		// a body cut off by the deadline is a transport problem, not bad JSON
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, p.fail(domain.ErrTransportFailure, resp.StatusCode, ctxErr)
		}
		return nil, p.fail(domain.ErrMalformedResponse, resp.StatusCode, err)
	}
	if quote.Currency == "" {
		quote.Currency = currency
	}

	p.logger.Debug("Upstream quote received",
		"currency", quote.Currency,
		"rate", quote.Rate,
		"elapsed", time.Since(start),
	)
	return &quote, nil
}

func (p *HTTPQuoteProvider) fail(kind error, status int, err error) error {
	return &domain.UpstreamError{
		Provider:   p.name,
		Kind:       kind,
		StatusCode: status,
		Err:        err,
	}
}
