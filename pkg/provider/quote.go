package provider

import (
	"context"

	"github.com/amirasaad/fxquote/pkg/domain"
)

// QuoteProvider defines the upstream source of live quotes.
type QuoteProvider interface {
	// FetchQuote asks the upstream for the current rate of a normalized
	// currency code. Failures wrap one of domain.ErrTransportFailure,
	// domain.ErrUpstreamRejected or domain.ErrMalformedResponse.
	FetchQuote(ctx context.Context, currency string) (*domain.Quote, error)

	// Name returns the provider's name for logging and identification.
	Name() string
}
