// Package metrics defines the Prometheus collectors of the related-content
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RelatedQueriesTotal  *prometheus.CounterVec
	RelatedLatency       *prometheus.HistogramVec
	RelatedResultsCount  prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CacheInvalidations   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg
// means the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		RelatedQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "related_queries_total",
				Help: "Related-items queries by outcome (hit, miss, empty, error kind).",
			},
			[]string{"outcome"},
		),
		RelatedLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "related_query_latency_seconds",
				Help:    "Related-items query latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		RelatedResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "related_results_count",
				Help:    "Number of related items returned per query.",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "related_cache_hits_total",
				Help: "Total number of related-query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "related_cache_misses_total",
				Help: "Total number of related-query cache misses.",
			},
		),
		CacheInvalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "related_cache_invalidations_total",
				Help: "Cache namespace invalidations by trigger (api, content_changed).",
			},
			[]string{"trigger"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RelatedQueriesTotal,
		m.RelatedLatency,
		m.RelatedResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheInvalidations,
	)

	return m
}

// Handler returns the scrape handler for g. A nil g means the default
// gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
