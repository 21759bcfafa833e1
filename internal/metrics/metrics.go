// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts HTTP requests by method, path and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foxground_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration observes HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "foxground_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// DBQueryDuration observes telemetry database query latency.
	DBQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "foxground_db_query_duration_seconds",
		Help:    "Telemetry DB query duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	// ToolRuns counts external tool invocations by tool and outcome.
	ToolRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foxground_tool_runs_total",
		Help: "Total number of external tool invocations",
	}, []string{"tool", "outcome"})
)
