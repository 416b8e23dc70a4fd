package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gift-notify/internal/pkg/config"
)

// WorkerMetrics holds the retention worker's Prometheus metrics.
type WorkerMetrics struct {
	Config *config.Metrics

	PruneRunsTotal       *prometheus.CounterVec
	PruneDurationSeconds prometheus.Histogram
	RowsPrunedTotal      prometheus.Counter
	LastSuccessTimestamp prometheus.Gauge
}

// NewWorkerMetrics registers the worker metrics on the default registry.
func NewWorkerMetrics() *WorkerMetrics {
	return NewWorkerMetricsWith(prometheus.DefaultRegisterer)
}

// NewWorkerMetricsWith registers the worker metrics on reg.
func NewWorkerMetricsWith(reg prometheus.Registerer) *WorkerMetrics {
	f := promauto.With(reg)
	return &WorkerMetrics{
		Config: config.NewMetricsWith(reg, "worker"),

		PruneRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_dedup_prune_runs_total",
			Help: "Dedup prune runs by status (started/success/failure)",
		}, []string{"status"}),

		PruneDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_dedup_prune_duration_seconds",
			Help:    "Duration of dedup prune runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 30, 60, 300},
		}),

		RowsPrunedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "worker_dedup_rows_pruned_total",
			Help: "Expired dedup claims deleted across all runs",
		}),

		LastSuccessTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "worker_dedup_prune_last_success_timestamp",
			Help: "Unix timestamp of the last successful prune",
		}),
	}
}

func (m *WorkerMetrics) RecordRun(status string) {
	m.PruneRunsTotal.WithLabelValues(status).Inc()
}

func (m *WorkerMetrics) RecordDuration(seconds float64) {
	m.PruneDurationSeconds.Observe(seconds)
}

func (m *WorkerMetrics) RecordPruned(rows int64) {
	m.RowsPrunedTotal.Add(float64(rows))
}

func (m *WorkerMetrics) RecordLastSuccess() {
	m.LastSuccessTimestamp.SetToCurrentTime()
}
