package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_requests_total",
			Help: "Service token checks by result",
		},
		[]string{"result"}, // success | failure | forbidden
	)

	authDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auth_duration_seconds",
			Help:    "Duration of successful service token checks",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01},
		},
	)
)

func RecordAuthRequest(result string) {
	authRequestsTotal.WithLabelValues(result).Inc()
}

func RecordAuthDuration(seconds float64) {
	authDuration.Observe(seconds)
}
