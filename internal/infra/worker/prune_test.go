package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePruner struct {
	cutoff time.Time
	rows   int64
	err    error
	calls  int
}

func (f *fakePruner) PruneBefore(_ context.Context, t time.Time) (int64, error) {
	f.calls++
	f.cutoff = t
	return f.rows, f.err
}

func TestPruner_Run(t *testing.T) {
	store := &fakePruner{rows: 12}
	metrics := NewWorkerMetricsWith(prometheus.NewRegistry())
	cfg := DefaultConfig()
	p := NewPruner(store, cfg, metrics, discardLogger())
	now := time.Date(2026, 3, 10, 3, 17, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	n, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	assert.Equal(t, now.Add(-7*24*time.Hour), store.cutoff)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PruneRunsTotal.WithLabelValues("success")))
	assert.Equal(t, 12.0, testutil.ToFloat64(metrics.RowsPrunedTotal))
}

func TestPruner_RunFailure(t *testing.T) {
	store := &fakePruner{err: errors.New("relation does not exist")}
	metrics := NewWorkerMetricsWith(prometheus.NewRegistry())
	p := NewPruner(store, DefaultConfig(), metrics, discardLogger())

	n, err := p.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "prune dedup claims")
	assert.Zero(t, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PruneRunsTotal.WithLabelValues("failure")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.LastSuccessTimestamp))
}

func TestPruner_RunWithoutMetrics(t *testing.T) {
	store := &fakePruner{rows: 1}
	p := NewPruner(store, DefaultConfig(), nil, discardLogger())

	_, err := p.Run(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, store.calls)
}

func TestPruner_Schedule(t *testing.T) {
	c := cron.New()
	p := NewPruner(&fakePruner{}, DefaultConfig(), nil, discardLogger())

	id, err := p.Schedule(context.Background(), c)

	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Len(t, c.Entries(), 1)

	bad := DefaultConfig()
	bad.PruneSchedule = "whenever"
	_, err = NewPruner(&fakePruner{}, bad, nil, discardLogger()).Schedule(context.Background(), c)
	assert.Error(t, err)
}
