// Package telemetry exposes the bridge's Prometheus metrics: cache
// hit/miss counts, rate-limit rejections, upstream retries, and OAuth
// token refreshes.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zoho_mcp_bridge"

// Metrics holds every counter/histogram the bridge records. A zero-value
// Metrics (via NewMetrics) is safe to pass around and call on even when
// nothing is scraping /metrics.
type Metrics struct {
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	RateLimitRejections *prometheus.CounterVec

	UpstreamRetries  *prometheus.CounterVec
	UpstreamRequests *prometheus.HistogramVec

	TokenRefreshes *prometheus.CounterVec
}

// NewMetrics registers every collector against reg and returns the
// bound Metrics. Pass prometheus.NewRegistry() for an isolated registry
// in tests, or prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Tool invocations served from the response cache.",
		}, []string{"tool"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Tool invocations that missed the response cache.",
		}, []string{"tool"}),
		RateLimitRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the admission gate's rate limiter.",
		}, []string{"principal"}),
		UpstreamRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "Retry attempts issued against an upstream API.",
		}, []string{"upstream"}),
		UpstreamRequests: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of completed upstream API requests, by outcome.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"upstream", "outcome"}),
		TokenRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "OAuth token refresh attempts, by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler returns the HTTP handler serving the /metrics endpoint for
// the given registry; pass the same Registerer given to NewMetrics.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
