// Package metrics defines the Prometheus metric collectors used across the
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
	DocumentsCreated     prometheus.Counter
	DocumentsDeleted     prometheus.Counter
	IndexTasksTotal      *prometheus.CounterVec
	TasksPublishedTotal  *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	CacheHitsTotal       *prometheus.CounterVec
	CacheMissesTotal     *prometheus.CounterVec
	RateLimitDecisions   *prometheus.CounterVec
	ReconcilerRequeued   prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
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
		DocumentsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "documents_created_total",
				Help: "Total documents accepted for indexing.",
			},
		),
		DocumentsDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "documents_deleted_total",
				Help: "Total documents deleted.",
			},
		),
		IndexTasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_tasks_total",
				Help: "Indexing tasks processed by kind (index, delete) and outcome (success, error, invalid).",
			},
			[]string{"kind", "outcome"},
		),
		TasksPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_tasks_published_total",
				Help: "Indexing tasks published to the channel by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits by namespace.",
			},
			[]string{"namespace"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses by namespace.",
			},
			[]string{"namespace"},
		),
		RateLimitDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_decisions_total",
				Help: "Rate limiter admissions and rejections by result (allowed, rejected, failopen).",
			},
			[]string{"result"},
		),
		ReconcilerRequeued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reconciler_requeued_total",
				Help: "Documents re-enqueued for indexing by the reconciliation sweep.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.DocumentsCreated,
		m.DocumentsDeleted,
		m.IndexTasksTotal,
		m.TasksPublishedTotal,
		m.SearchLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.RateLimitDecisions,
		m.ReconcilerRequeued,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
