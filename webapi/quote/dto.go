package quote

import (
	"strings"
)

// QuoteRequest holds the query parameters of GET /quote.
type QuoteRequest struct {
	Currency string `query:"currency" validate:"omitempty,alpha,min=3,max=5"`
	NoCache  bool   `query:"nocache"`
}

// Normalize trims and upper-cases the currency code.
func (r *QuoteRequest) Normalize() {
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
}
