package worker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestWorkerMetrics_Record(t *testing.T) {
	m := NewWorkerMetricsWith(prometheus.NewRegistry())

	m.RecordRun("started")
	m.RecordRun("success")
	m.RecordRun("success")
	m.RecordPruned(40)
	m.RecordPruned(2)
	m.RecordDuration(0.25)
	m.RecordLastSuccess()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PruneRunsTotal.WithLabelValues("started")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PruneRunsTotal.WithLabelValues("success")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.RowsPrunedTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PruneDurationSeconds))
	assert.Greater(t, testutil.ToFloat64(m.LastSuccessTimestamp), 0.0)
}

func TestWorkerMetrics_Names(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWorkerMetricsWith(reg)
	m.RecordRun("success")
	m.RecordDuration(1)

	count, err := testutil.GatherAndCount(reg,
		"worker_dedup_prune_runs_total",
		"worker_dedup_prune_duration_seconds",
		"worker_dedup_rows_pruned_total",
		"worker_dedup_prune_last_success_timestamp",
		"worker_config_load_timestamp")
	assert.NoError(t, err)
	assert.Equal(t, 5, count)
}
