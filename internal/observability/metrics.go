package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	httpErrorsTotal        *prometheus.CounterVec
	feedbackResolvedTotal  *prometheus.CounterVec
	feedbackRateLimited    prometheus.Counter
	enrichmentQueueDepth   prometheus.Gauge
	enrichmentTaskDuration prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		feedbackResolvedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedback_resolved_total",
			Help: "Enrichment outcomes by feedback source.",
		}, []string{"source"})

		feedbackRateLimited = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedback_rate_limited_total",
			Help: "Enrichment requests routed to template because the user quota was exhausted.",
		})

		enrichmentQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "enrichment_queue_depth",
			Help: "Number of enrichment tasks waiting in the queue.",
		})

		enrichmentTaskDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "enrichment_task_duration_seconds",
			Help:    "Time workers spend resolving one enrichment task.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			feedbackResolvedTotal,
			feedbackRateLimited,
			enrichmentQueueDepth,
			enrichmentTaskDuration,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// FeedbackResolved exposes the counter for enrichment outcomes by source.
func FeedbackResolved() *prometheus.CounterVec {
	RegisterMetrics()
	return feedbackResolvedTotal
}

// FeedbackRateLimited exposes the counter for quota-exhausted enrichments.
func FeedbackRateLimited() prometheus.Counter {
	RegisterMetrics()
	return feedbackRateLimited
}

// QueueDepth exposes the gauge tracking queued enrichment tasks.
func QueueDepth() prometheus.Gauge {
	RegisterMetrics()
	return enrichmentQueueDepth
}

// EnrichmentDuration exposes the histogram for per-task worker latency.
func EnrichmentDuration() prometheus.Histogram {
	RegisterMetrics()
	return enrichmentTaskDuration
}
