package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"gift-notify/internal/repository"
)

// Pruner deletes dedup claims older than the retention period.
type Pruner struct {
	store   repository.DedupPruner
	cfg     Config
	metrics *WorkerMetrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewPruner creates a Pruner. metrics may be nil.
func NewPruner(store repository.DedupPruner, cfg Config, metrics *WorkerMetrics, logger *slog.Logger) *Pruner {
	return &Pruner{
		store:   store,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Run performs one prune bounded by the configured timeout.
func (p *Pruner) Run(ctx context.Context) (int64, error) {
	start := time.Now()
	p.record(func(m *WorkerMetrics) { m.RecordRun("started") })

	ctx, cancel := context.WithTimeout(ctx, p.cfg.PruneTimeout)
	defer cancel()

	cutoff := p.now().UTC().Add(-p.cfg.Retention)
	n, err := p.store.PruneBefore(ctx, cutoff)
	elapsed := time.Since(start)
	if err != nil {
		p.record(func(m *WorkerMetrics) {
			m.RecordRun("failure")
			m.RecordDuration(elapsed.Seconds())
		})
		return 0, fmt.Errorf("prune dedup claims: %w", err)
	}

	p.record(func(m *WorkerMetrics) {
		m.RecordRun("success")
		m.RecordDuration(elapsed.Seconds())
		m.RecordPruned(n)
		m.RecordLastSuccess()
	})
	p.logger.Info("dedup prune completed",
		slog.Int64("rows", n),
		slog.Time("cutoff", cutoff),
		slog.Duration("duration", elapsed))
	return n, nil
}

// Schedule registers the prune on c using the configured schedule.
func (p *Pruner) Schedule(ctx context.Context, c *cron.Cron) (cron.EntryID, error) {
	id, err := c.AddFunc(p.cfg.PruneSchedule, func() {
		if _, err := p.Run(ctx); err != nil {
			p.logger.Error("dedup prune failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return 0, fmt.Errorf("schedule dedup prune: %w", err)
	}
	return id, nil
}

func (p *Pruner) record(fn func(*WorkerMetrics)) {
	if p.metrics != nil {
		fn(p.metrics)
	}
}
