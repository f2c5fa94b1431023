package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestCounter counts HTTP requests by status code, method and route pattern.
	RequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procurement_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"status", "method", "path"},
	)

	// RequestDuration measures HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "procurement_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status", "method", "path"},
	)

	// AuthzDenials counts requests rejected by an authorization gate.
	AuthzDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procurement_authz_denials_total",
			Help: "Total number of requests denied by an authorization rule",
		},
		[]string{"rule"},
	)

	// RateLimiterRejections counts requests rejected by a named limiter.
	RateLimiterRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procurement_rate_limiter_rejections_total",
			Help: "Total number of requests rejected by rate limiter",
		},
		[]string{"limiter"},
	)

	// DashboardAggregation measures the dashboard fan-out.
	DashboardAggregation = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "procurement_dashboard_aggregation_seconds",
			Help:    "Dashboard metrics aggregation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scope"},
	)

	// DatabaseOperationDuration measures repository calls.
	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "procurement_db_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)
)

// RecordDBOperation records the duration of a database operation.
func RecordDBOperation(operation, table string, startTime time.Time) {
	DatabaseOperationDuration.WithLabelValues(operation, table).Observe(time.Since(startTime).Seconds())
}
