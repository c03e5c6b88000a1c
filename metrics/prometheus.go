// Package metrics provides Prometheus metrics export for the analysis
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter holds the metric families of the service on a private
// registry, so only our families show up on /metrics.
type Exporter struct {
	registry *prometheus.Registry

	requestsTotal   prometheus.Counter
	requestsSuccess prometheus.Counter
	requestsFailed  *prometheus.CounterVec

	requestLatency   prometheus.Histogram
	heuristicLatency prometheus.Histogram
	llmLatency       prometheus.Histogram

	llmCalls  prometheus.Counter
	llmErrors prometheus.Counter
	llmTokens prometheus.Counter

	actionsExtracted prometheus.Histogram

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
}

// NewExporter registers all metric families on a fresh registry.
func NewExporter() *Exporter {
	registry := prometheus.NewRegistry()
	e := &Exporter{registry: registry}

	e.requestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nlp",
		Name:      "requests_total",
		Help:      "Total number of analysis requests",
	})
	e.requestsSuccess = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nlp",
		Name:      "requests_success_total",
		Help:      "Total number of successful requests",
	})
	e.requestsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nlp",
		Name:      "requests_failed_total",
		Help:      "Total number of failed requests",
	}, []string{"error_type"})

	e.requestLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nlp",
		Name:      "request_latency_seconds",
		Help:      "Request latency in seconds",
		Buckets:   []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
	})
	e.heuristicLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nlp",
		Name:      "heuristic_latency_seconds",
		Help:      "Heuristic parser latency in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.2, 0.5},
	})
	e.llmLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nlp",
		Name:      "llm_latency_seconds",
		Help:      "LLM parser latency in seconds",
		Buckets:   []float64{0.5, 1.0, 2.0, 5.0, 10.0, 20.0},
	})

	e.llmCalls = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nlp",
		Name:      "llm_calls_total",
		Help:      "Total number of LLM API calls",
	})
	e.llmErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nlp",
		Name:      "llm_errors_total",
		Help:      "Total number of LLM errors",
	})
	e.llmTokens = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nlp",
		Name:      "llm_tokens_used_total",
		Help:      "Total tokens used by LLM",
	})

	e.actionsExtracted = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nlp",
		Name:      "actions_extracted",
		Help:      "Number of actions extracted per request",
		Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
	})

	e.cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nlp",
		Name:      "cache_hits_total",
		Help:      "Total number of cache hits",
	})
	e.cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nlp",
		Name:      "cache_misses_total",
		Help:      "Total number of cache misses",
	})

	registry.MustRegister(
		e.requestsTotal, e.requestsSuccess, e.requestsFailed,
		e.requestLatency, e.heuristicLatency, e.llmLatency,
		e.llmCalls, e.llmErrors, e.llmTokens,
		e.actionsExtracted,
		e.cacheHits, e.cacheMisses,
	)
	return e
}

func (e *Exporter) ObserveRequest(latencySeconds float64, actionCount int) {
	e.requestsTotal.Inc()
	e.requestsSuccess.Inc()
	e.requestLatency.Observe(latencySeconds)
	e.actionsExtracted.Observe(float64(actionCount))
}

func (e *Exporter) ObserveRequestFailure(errorType string) {
	e.requestsTotal.Inc()
	e.requestsFailed.WithLabelValues(errorType).Inc()
}

func (e *Exporter) ObserveHeuristic(latencySeconds float64) {
	e.heuristicLatency.Observe(latencySeconds)
}

func (e *Exporter) ObserveLLMCall(latencySeconds float64, tokens int, failed bool) {
	e.llmCalls.Inc()
	e.llmLatency.Observe(latencySeconds)
	e.llmTokens.Add(float64(tokens))
	if failed {
		e.llmErrors.Inc()
	}
}

func (e *Exporter) ObserveCacheHit()  { e.cacheHits.Inc() }
func (e *Exporter) ObserveCacheMiss() { e.cacheMisses.Inc() }

// Handler serves the registry in Prometheus text format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}
