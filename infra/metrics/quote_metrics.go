package metrics

import (
	"time"

	"github.com/amirasaad/fxquote/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fxquote"

// QuoteMetrics records quote lookups. It implements quote.Recorder.
type QuoteMetrics struct {
	QuotesServedTotal     *prometheus.CounterVec
	QuoteDuration         *prometheus.HistogramVec
	UpstreamAttemptsTotal *prometheus.CounterVec
	CacheErrorsTotal      *prometheus.CounterVec
}

// NewQuoteMetrics registers the quote metrics on reg. A nil reg uses the
// default Prometheus registerer.
func NewQuoteMetrics(reg prometheus.Registerer) *QuoteMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &QuoteMetrics{
		QuotesServedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quotes_served_total",
				Help:      "Quotes returned, by the tier that answered.",
			},
			[]string{"source"},
		),
		QuoteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "quote_duration_seconds",
				Help:      "Time to answer a quote lookup, by the tier that answered.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"source"},
		),
		UpstreamAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_attempts_total",
				Help:      "Upstream calls, by outcome.",
			},
			[]string{"outcome"},
		),
		CacheErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_errors_total",
				Help:      "Cache backend failures, by operation.",
			},
			[]string{"op"},
		),
	}
}

func (m *QuoteMetrics) QuoteServed(source domain.Source, elapsed time.Duration) {
	m.QuotesServedTotal.WithLabelValues(source.String()).Inc()
	m.QuoteDuration.WithLabelValues(source.String()).Observe(elapsed.Seconds())
}

func (m *QuoteMetrics) UpstreamAttempt(outcome string) {
	m.UpstreamAttemptsTotal.WithLabelValues(outcome).Inc()
}

func (m *QuoteMetrics) CacheError(op string) {
	m.CacheErrorsTotal.WithLabelValues(op).Inc()
}
