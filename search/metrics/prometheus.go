// Package metrics provides Prometheus metrics export for the search
// pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exports search pipeline metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Search metrics
	searchLatency  *prometheus.HistogramVec
	searchRequests *prometheus.CounterVec
	searchResults  *prometheus.HistogramVec

	// Provider metrics
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	providerErrors  *prometheus.CounterVec

	// Cache metrics
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// Model classifier metrics
	modelCalls   *prometheus.CounterVec
	modelLatency prometheus.Histogram
	modelSpend   prometheus.Counter

	// Breaker and fallback metrics
	breakerState *prometheus.GaugeVec
	fallbacks    *prometheus.CounterVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.searchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "citypulse",
			Subsystem: "search",
			Name:      "latency_seconds",
			Help:      "End-to-end search latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"intent_kind", "cache"},
	)

	e.searchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "citypulse",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total number of search requests",
		},
		[]string{"intent_kind", "source", "status"},
	)

	e.searchResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "citypulse",
			Subsystem: "search",
			Name:      "results_returned",
			Help:      "Number of results returned per search",
			Buckets:   []float64{0, 1, 5, 10, 15, 25, 50},
		},
		[]string{"intent_kind"},
	)

	e.providerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "citypulse",
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Total number of upstream provider calls",
		},
		[]string{"provider", "status"},
	)

	e.providerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "citypulse",
			Subsystem: "provider",
			Name:      "latency_seconds",
			Help:      "Upstream provider call latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"provider"},
	)

	e.providerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "citypulse",
			Subsystem: "provider",
			Name:      "errors_total",
			Help:      "Total number of upstream provider errors",
		},
		[]string{"provider", "error_type"},
	)

	e.cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "citypulse",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	e.cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "citypulse",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	e.modelCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "citypulse",
			Subsystem: "model",
			Name:      "calls_total",
			Help:      "Total number of model classifier calls",
		},
		[]string{"status"},
	)

	e.modelLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "citypulse",
			Subsystem: "model",
			Name:      "latency_seconds",
			Help:      "Model classifier call latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
	)

	e.modelSpend = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "citypulse",
			Subsystem: "model",
			Name:      "spend_usd_total",
			Help:      "Cumulative model classifier spend in USD",
		},
	)

	e.breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "citypulse",
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Circuit breaker state (0=closed, 1=half_open, 2=open)",
		},
		[]string{"provider"},
	)

	e.fallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "citypulse",
			Subsystem: "search",
			Name:      "fallbacks_total",
			Help:      "Total number of fallback strategies applied",
		},
		[]string{"strategy"},
	)

	registry.MustRegister(
		e.searchLatency,
		e.searchRequests,
		e.searchResults,
		e.providerCalls,
		e.providerLatency,
		e.providerErrors,
		e.cacheHits,
		e.cacheMisses,
		e.modelCalls,
		e.modelLatency,
		e.modelSpend,
		e.breakerState,
		e.fallbacks,
	)

	return e
}

// RecordSearch records one complete search request.
func (e *PrometheusExporter) RecordSearch(intentKind, source string, latency time.Duration, results int, cacheHit, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}

	e.searchRequests.WithLabelValues(intentKind, source, status).Inc()
	e.searchLatency.WithLabelValues(intentKind, cache).Observe(latency.Seconds())
	e.searchResults.WithLabelValues(intentKind).Observe(float64(results))
}

// RecordProviderCall records an upstream provider call.
func (e *PrometheusExporter) RecordProviderCall(provider string, latency time.Duration, success bool, errorType string) {
	status := "success"
	if !success {
		status = "error"
		if errorType != "" {
			e.providerErrors.WithLabelValues(provider, errorType).Inc()
		}
	}

	e.providerCalls.WithLabelValues(provider, status).Inc()
	e.providerLatency.WithLabelValues(provider).Observe(latency.Seconds())
}

// RecordCacheHit records a cache hit.
func (e *PrometheusExporter) RecordCacheHit(cacheType string) {
	e.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (e *PrometheusExporter) RecordCacheMiss(cacheType string) {
	e.cacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordModelCall records a model classifier invocation.
func (e *PrometheusExporter) RecordModelCall(latency time.Duration, costUSD float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	e.modelCalls.WithLabelValues(status).Inc()
	e.modelLatency.Observe(latency.Seconds())
	e.modelSpend.Add(costUSD)
}

// SetBreakerState publishes the breaker state for a provider.
func (e *PrometheusExporter) SetBreakerState(provider string, state int) {
	e.breakerState.WithLabelValues(provider).Set(float64(state))
}

// RecordFallback records an applied fallback strategy.
func (e *PrometheusExporter) RecordFallback(strategy string) {
	e.fallbacks.WithLabelValues(strategy).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (e *PrometheusExporter) Registry() *prometheus.Registry {
	return e.registry
}
