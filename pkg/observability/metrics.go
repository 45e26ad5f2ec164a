// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the tradelens service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// UpstreamBuckets defines histogram buckets suited for hosted vector search
// and model latencies, ranging from 10ms to 60s.
var UpstreamBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

var (
	// RequestsTotal counts all HTTP requests by method, route, and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelens_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradelens_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: UpstreamBuckets,
		},
		[]string{"method", "route"},
	)

	// InflightRequests tracks requests currently being served.
	InflightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradelens_http_requests_inflight",
			Help: "In-flight HTTP requests",
		},
	)

	// QueriesTotal counts pipeline runs by namespace and outcome.
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelens_queries_total",
			Help: "Answered queries",
		},
		[]string{"namespace", "outcome"},
	)

	// SearchDuration records vector index latency.
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradelens_search_duration_seconds",
			Help:    "Vector search latency",
			Buckets: UpstreamBuckets,
		},
		[]string{"backend", "namespace", "status"},
	)

	// SearchHits records how many records each search returned.
	SearchHits = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradelens_search_hits",
			Help:    "Records returned per search",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"namespace"},
	)

	// LLMRequestsTotal counts summarisation calls by provider and outcome.
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelens_llm_requests_total",
			Help: "Summarisation requests",
		},
		[]string{"provider", "status"},
	)

	// LLMLatency records summarisation latency in seconds.
	LLMLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradelens_llm_latency_seconds",
			Help:    "Summarisation latency",
			Buckets: UpstreamBuckets,
		},
		[]string{"provider"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelens_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		InflightRequests,
		QueriesTotal,
		SearchDuration,
		SearchHits,
		LLMRequestsTotal,
		LLMLatency,
		RateLimitRejectedTotal,
	)
}
