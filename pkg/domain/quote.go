package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Source describes how a particular quote response was obtained.
type Source string

const (
	SourceLive       Source = "live"
	SourceCache      Source = "cache"
	SourceStaleCache Source = "stale-cache"
	SourceFallback   Source = "fallback"
)

// Valid reports whether s is one of the four quote tiers.
func (s Source) Valid() bool {
	switch s {
	case SourceLive, SourceCache, SourceStaleCache, SourceFallback:
		return true
	default:
		return false
	}
}

func (s Source) String() string {
	return string(s)
}

const (
	fieldCurrency = "currency"
	fieldRate     = "rate"
	fieldSource   = "source"

	minCurrencyLen = 3
	maxCurrencyLen = 5
)

// Quote is the exchange rate answer for one currency. Fields the upstream
// sends beyond currency, rate and source are kept in Extra and written back
// out untouched.
type Quote struct {
	Currency string
	Rate     decimal.Decimal
	Source   Source
	Extra    map[string]json.RawMessage
}

// NewFallbackQuote builds the static default quote for currency.
func NewFallbackQuote(currency string, rate decimal.Decimal) *Quote {
	return &Quote{
		Currency: currency,
		Rate:     rate,
		Source:   SourceFallback,
	}
}

// WithSource returns a copy of q labeled with s.
func (q Quote) WithSource(s Source) *Quote {
	q.Source = s
	return &q
}

// Validate checks that the quote carries a usable rate.
func (q *Quote) Validate() error {
	if q == nil {
		return fmt.Errorf("%w: empty payload", ErrMalformedResponse)
	}
	if !q.Rate.IsPositive() {
		return fmt.Errorf("%w: rate must be positive, got %s", ErrMalformedResponse, q.Rate)
	}
	return nil
}

// MarshalJSON flattens passthrough fields and the quote's own fields into one
// object. currency, rate and source always win over passthrough keys.
func (q Quote) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(q.Extra)+3)
	for k, v := range q.Extra {
		out[k] = v
	}

	currency, err := json.Marshal(q.Currency)
	if err != nil {
		return nil, err
	}
	source, err := json.Marshal(string(q.Source))
	if err != nil {
		return nil, err
	}

	out[fieldCurrency] = currency
	out[fieldRate] = json.RawMessage(q.Rate.String())
	out[fieldSource] = source

	return json.Marshal(out)
}

// UnmarshalJSON decodes an upstream or cached payload. The rate field is
// required; an incoming source is dropped because it never describes how
// this response was obtained.
func (q *Quote) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	rawRate, ok := raw[fieldRate]
	if !ok || string(rawRate) == "null" {
		return fmt.Errorf("%w: missing %q field", ErrMalformedResponse, fieldRate)
	}

	var rate decimal.Decimal
	if err := rate.UnmarshalJSON(rawRate); err != nil {
		return fmt.Errorf("%w: invalid %q field: %v", ErrMalformedResponse, fieldRate, err)
	}

	var currency string
	if rawCurrency, ok := raw[fieldCurrency]; ok && string(rawCurrency) != "null" {
		if err := json.Unmarshal(rawCurrency, &currency); err != nil {
			return fmt.Errorf("%w: invalid %q field: %v", ErrMalformedResponse, fieldCurrency, err)
		}
	}

	delete(raw, fieldRate)
	delete(raw, fieldCurrency)
	delete(raw, fieldSource)

	*q = Quote{
		Currency: NormalizeCurrency(currency),
		Rate:     rate,
	}
	if len(raw) > 0 {
		q.Extra = raw
	}
	return nil
}

// NormalizeCurrency trims and upper-cases a currency code. Cache keys and
// upstream calls always use the normalized form.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCurrency checks a normalized code is 3 to 5 ASCII letters.
func ValidateCurrency(code string) error {
	if len(code) < minCurrencyLen || len(code) > maxCurrencyLen {
		return fmt.Errorf("%w: %q must be %d-%d characters", ErrInvalidCurrencyCode, code, minCurrencyLen, maxCurrencyLen)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("%w: %q must contain only letters", ErrInvalidCurrencyCode, code)
		}
	}
	return nil
}
