package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantErr   error
		wantRate  string
		wantCur   string
		wantExtra []string
	}{
		{
			name:      "upstream payload with passthrough fields",
			payload:   `{"currency":"usd","rate":5.0312,"source":"provider","latency_ms":120}`,
			wantRate:  "5.0312",
			wantCur:   "USD",
			wantExtra: []string{"latency_ms"},
		},
		{
			name:     "rate as numeric string",
			payload:  `{"rate":"1.25"}`,
			wantRate: "1.25",
		},
		{
			name:    "missing rate",
			payload: `{"currency":"USD","latency_ms":80}`,
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "null rate",
			payload: `{"currency":"USD","rate":null}`,
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "rate is not numeric",
			payload: `{"rate":"abc"}`,
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "not an object",
			payload: `[1,2,3]`,
			wantErr: ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q Quote
			err := json.Unmarshal([]byte(tt.payload), &q)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRate, q.Rate.String())
			assert.Equal(t, tt.wantCur, q.Currency)
			assert.Empty(t, q.Source, "incoming source must be discarded")
			for _, key := range tt.wantExtra {
				assert.Contains(t, q.Extra, key)
			}
		})
	}
}

func TestQuote_MarshalJSON_OwnFieldsWinOverPassthrough(t *testing.T) {
	q := Quote{
		Currency: "USD",
		Rate:     decimal.RequireFromString("5.23"),
		Source:   SourceStaleCache,
		Extra: map[string]json.RawMessage{
			"source":     json.RawMessage(`"provider"`),
			"latency_ms": json.RawMessage(`42`),
		},
	}

	data, err := json.Marshal(q)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "USD", out["currency"])
	assert.InDelta(t, 5.23, out["rate"], 1e-9)
	assert.Equal(t, "stale-cache", out["source"])
	assert.InDelta(t, 42, out["latency_ms"], 1e-9)
}

func TestQuote_CacheRoundTripKeepsPassthrough(t *testing.T) {
	var upstream Quote
	require.NoError(t, json.Unmarshal([]byte(`{"currency":"EUR","rate":1.0801,"latency_ms":75}`), &upstream))

	data, err := json.Marshal(upstream.WithSource(SourceLive))
	require.NoError(t, err)

	var cached Quote
	require.NoError(t, json.Unmarshal(data, &cached))
	assert.True(t, upstream.Rate.Equal(cached.Rate))
	assert.Equal(t, "EUR", cached.Currency)
	assert.JSONEq(t, `75`, string(cached.Extra["latency_ms"]))
}

func TestQuote_Validate(t *testing.T) {
	var nilQuote *Quote
	require.ErrorIs(t, nilQuote.Validate(), ErrMalformedResponse)
	require.ErrorIs(t, (&Quote{Rate: decimal.Zero}).Validate(), ErrMalformedResponse)
	require.ErrorIs(t, (&Quote{Rate: decimal.NewFromInt(-1)}).Validate(), ErrMalformedResponse)
	require.NoError(t, (&Quote{Rate: decimal.RequireFromString("0.0001")}).Validate())
}

func TestQuote_WithSourceDoesNotMutateOriginal(t *testing.T) {
	q := &Quote{Currency: "USD", Rate: decimal.NewFromInt(5), Source: SourceLive}
	labeled := q.WithSource(SourceCache)
	assert.Equal(t, SourceLive, q.Source)
	assert.Equal(t, SourceCache, labeled.Source)
}

func TestSource_Valid(t *testing.T) {
	for _, s := range []Source{SourceLive, SourceCache, SourceStaleCache, SourceFallback} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Source("").Valid())
	assert.False(t, Source("provider").Valid())
}

func TestNormalizeAndValidateCurrency(t *testing.T) {
	assert.Equal(t, "USD", NormalizeCurrency(" usd "))
	assert.Equal(t, "USDT", NormalizeCurrency("UsDt"))

	for _, ok := range []string{"USD", "USDT", "ABCDE"} {
		assert.NoError(t, ValidateCurrency(ok), ok)
	}
	for _, bad := range []string{"", "US", "ABCDEF", "US1", "U-D"} {
		assert.ErrorIs(t, ValidateCurrency(bad), ErrInvalidCurrencyCode, bad)
	}
}
