// Package metrics defines the Prometheus metric collectors of the admin
// emulator and client and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	RPCRequestsTotal        *prometheus.CounterVec
	RPCRequestDuration      *prometheus.HistogramVec
	HTTPRequestsTotal       *prometheus.CounterVec
	HTTPRequestDuration     *prometheus.HistogramVec
	HTTPRequestsInFlight    prometheus.Gauge
	OperationsStartedTotal  *prometheus.CounterVec
	OperationsFinishedTotal *prometheus.CounterVec
	OperationsInFlight      prometheus.Gauge
	OperationDuration       *prometheus.HistogramVec
	OperationCacheHits      prometheus.Counter
	OperationCacheMisses    prometheus.Counter
	RateLimitedTotal        prometheus.Counter
	EventsDroppedTotal      prometheus.Counter
	CircuitBreakerState     *prometheus.GaugeVec
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RPCRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rpc_requests_total",
				Help: "Total number of RPCs by full method and status code.",
			},
			[]string{"method", "code"},
		),
		RPCRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rpc_request_duration_seconds",
				Help:    "RPC latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
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
		OperationsStartedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "operations_started_total",
				Help: "Long-running operations started, by operation type.",
			},
			[]string{"type"},
		),
		OperationsFinishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "operations_finished_total",
				Help: "Long-running operations finished, by operation type and final state.",
			},
			[]string{"type", "state"},
		),
		OperationsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "operations_in_flight",
				Help: "Long-running operations currently queued or running.",
			},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "operation_duration_seconds",
				Help:    "Wall time of finished long-running operations.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"type"},
		),
		OperationCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "operation_cache_hits_total",
				Help: "Finished operations served from the cache.",
			},
		),
		OperationCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "operation_cache_misses_total",
				Help: "Operation lookups that missed the cache.",
			},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limited_requests_total",
				Help: "Requests rejected by the per-key rate limiter.",
			},
		),
		EventsDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "operation_events_dropped_total",
				Help: "Operation events dropped because the event buffer was full.",
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

	reg.MustRegister(
		m.RPCRequestsTotal,
		m.RPCRequestDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.OperationsStartedTotal,
		m.OperationsFinishedTotal,
		m.OperationsInFlight,
		m.OperationDuration,
		m.OperationCacheHits,
		m.OperationCacheMisses,
		m.RateLimitedTotal,
		m.EventsDroppedTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
