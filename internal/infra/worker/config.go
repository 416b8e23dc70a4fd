package worker

import (
	"fmt"
	"log/slog"
	"time"

	"gift-notify/internal/domain/entity"
	"gift-notify/internal/pkg/config"
)

// maxRetention bounds DEDUP_RETENTION so a typo cannot keep claims forever.
const maxRetention = 90 * 24 * time.Hour

// Config holds the settings of the dedup retention worker.
type Config struct {
	// PruneSchedule is a five-field cron expression or descriptor.
	// Default: "17 3 * * *"
	PruneSchedule string

	// Timezone is the IANA zone PruneSchedule is evaluated in.
	// Default: "UTC"
	Timezone string

	// Retention is how long a dedup claim is kept. It must outlive the
	// longest dedup window, otherwise pruning would let duplicates through.
	// Default: 7 days
	Retention time.Duration

	// PruneTimeout bounds one prune run.
	// Default: 5 minutes
	PruneTimeout time.Duration

	// HealthPort serves /health and /health/ready.
	// Default: 9091
	HealthPort int

	// PruneOnStart runs one prune immediately after startup.
	PruneOnStart bool
}

// DefaultConfig returns the worker defaults.
func DefaultConfig() Config {
	return Config{
		PruneSchedule: "17 3 * * *",
		Timezone:      "UTC",
		Retention:     7 * 24 * time.Hour,
		PruneTimeout:  5 * time.Minute,
		HealthPort:    9091,
	}
}

func minRetention() time.Duration {
	return entity.MaxDedupWindow() + time.Hour
}

func validateRetention(d time.Duration) error {
	return config.ValidateDurationRange(d, minRetention(), maxRetention)
}

func validatePruneTimeout(d time.Duration) error {
	return config.ValidateDurationRange(d, 10*time.Second, time.Hour)
}

// Validate returns every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if err := config.ValidateCronSchedule(c.PruneSchedule); err != nil {
		errs = append(errs, fmt.Errorf("prune schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := validateRetention(c.Retention); err != nil {
		errs = append(errs, fmt.Errorf("retention: %w", err))
	}
	if err := validatePruneTimeout(c.PruneTimeout); err != nil {
		errs = append(errs, fmt.Errorf("prune timeout: %w", err))
	}
	if err := config.ValidatePort(c.HealthPort); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// Location returns the schedule's time zone, UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadConfigFromEnv loads the worker configuration. It never fails: an
// invalid value is replaced by its default, logged, and counted in the
// worker_config_* metrics.
//
// Environment variables:
//   - DEDUP_PRUNE_SCHEDULE (default "17 3 * * *")
//   - WORKER_TIMEZONE (default "UTC")
//   - DEDUP_RETENTION (default 168h, at least the longest dedup window plus 1h)
//   - PRUNE_TIMEOUT (default 5m, 10s to 1h)
//   - WORKER_HEALTH_PORT (default 9091)
//   - PRUNE_ON_START (default false)
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) *Config {
	var cm *config.Metrics
	if metrics != nil {
		cm = metrics.Config
	}
	l := config.NewLoader(logger, cm)
	defer l.Done()

	def := DefaultConfig()
	return &Config{
		PruneSchedule: config.Apply(l, "prune_schedule",
			config.LoadStringValidated("DEDUP_PRUNE_SCHEDULE", def.PruneSchedule, config.ValidateCronSchedule)),
		Timezone: config.Apply(l, "timezone",
			config.LoadStringValidated("WORKER_TIMEZONE", def.Timezone, config.ValidateTimezone)),
		Retention: config.Apply(l, "retention",
			config.LoadDuration("DEDUP_RETENTION", def.Retention, validateRetention)),
		PruneTimeout: config.Apply(l, "prune_timeout",
			config.LoadDuration("PRUNE_TIMEOUT", def.PruneTimeout, validatePruneTimeout)),
		HealthPort: config.Apply(l, "health_port",
			config.LoadInt("WORKER_HEALTH_PORT", def.HealthPort, config.ValidatePort)),
		PruneOnStart: config.Apply(l, "prune_on_start", config.LoadBool("PRUNE_ON_START", false)),
	}
}
