// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the werkbank service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// StageBuckets defines histogram buckets suited for pipeline stage
// latencies, ranging from 100ms to 120s. Oracle and synthesizer calls
// sit at the slow end, tool executions at the fast end.
var StageBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method, route pattern, and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "werkbank_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "werkbank_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: StageBuckets,
		},
		[]string{"method", "route"},
	)

	// RequestsInFlight tracks the number of HTTP requests currently being served.
	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "werkbank_requests_in_flight",
			Help: "In-flight HTTP requests",
		},
	)

	// QueriesTotal counts pipeline runs by outcome.
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "werkbank_queries_total",
			Help: "Pipeline runs",
		},
		[]string{"status"},
	)

	// StageDuration records per-stage pipeline latency in seconds.
	// Stages are "select", "execute", and "synthesize".
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "werkbank_pipeline_stage_duration_seconds",
			Help:    "Pipeline stage duration",
			Buckets: StageBuckets,
		},
		[]string{"stage"},
	)

	// OracleFallbacksTotal counts oracle failures that triggered the
	// deterministic fallback selection.
	OracleFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "werkbank_oracle_fallbacks_total",
			Help: "Oracle fallback selections",
		},
	)

	// SandboxExecutionsTotal counts sandboxed code runs by outcome
	// (ok, error, timeout, rejected).
	SandboxExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "werkbank_sandbox_executions_total",
			Help: "Sandboxed code executions",
		},
		[]string{"status"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "werkbank_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		RequestsInFlight,
		QueriesTotal,
		StageDuration,
		OracleFallbacksTotal,
		SandboxExecutionsTotal,
		RateLimitRejectedTotal,
	)
}
