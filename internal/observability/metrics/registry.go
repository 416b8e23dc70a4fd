// Package metrics provides centralized Prometheus metrics for the gateway clients and the database.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gateway metrics track calls to the external messaging providers.
var (
	// GatewayRequestsTotal counts provider requests by gateway and result
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of requests sent to messaging providers",
		},
		[]string{"gateway", "result"}, // result: success|client_error|server_error|network_error|expired
	)

	// GatewayRequestDuration measures provider round trips, retries included
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Provider request duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"gateway"},
	)

	// GatewayRateLimitWaits counts sends that had to wait for a token
	GatewayRateLimitWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_rate_limit_waits_total",
			Help: "Total number of sends delayed by the client-side rate limiter",
		},
		[]string{"gateway"},
	)

	// GatewayRateLimitWaitSeconds measures time spent waiting for the limiter
	GatewayRateLimitWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_rate_limit_wait_seconds",
			Help:    "Time spent waiting for the client-side rate limiter in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"gateway"},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// RecordGatewayRequest records one finished provider call.
func RecordGatewayRequest(gateway, result string, duration time.Duration) {
	GatewayRequestsTotal.WithLabelValues(gateway, result).Inc()
	GatewayRequestDuration.WithLabelValues(gateway).Observe(duration.Seconds())
}

// RecordRateLimitWait records a send that was held back by the rate limiter.
func RecordRateLimitWait(gateway string, wait time.Duration) {
	GatewayRateLimitWaits.WithLabelValues(gateway).Inc()
	GatewayRateLimitWaitSeconds.WithLabelValues(gateway).Observe(wait.Seconds())
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "insert_attempt", "claim_dedup").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
