// Package config provides fail-open environment loading shared by the api and
// worker binaries.
//
// A missing variable silently yields the default. A variable that is present
// but unparsable or rejected by its validator also yields the default, and the
// returned Result carries a warning so the caller can log it and bump the
// fallback metrics. Loading never fails; checks that must stop the process
// (missing credentials, for example) belong in the caller's Validate method.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Result is the outcome of loading one variable.
type Result[T any] struct {
	Value           T
	Warning         string
	FallbackApplied bool
}

// Load reads key, parses it and validates it. validate may be nil.
func Load[T any](key string, def T, parse func(string) (T, error), validate func(T) error) Result[T] {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return Result[T]{Value: def}
	}

	v, err := parse(raw)
	if err == nil && validate != nil {
		err = validate(v)
	}
	if err != nil {
		return Result[T]{
			Value:           def,
			Warning:         fmt.Sprintf("invalid %s=%q: %v, falling back to default %v", key, raw, err, def),
			FallbackApplied: true,
		}
	}
	return Result[T]{Value: v}
}

// LoadString returns the variable or def. Surrounding whitespace is trimmed.
func LoadString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// LoadStringValidated loads a string checked by validate.
func LoadStringValidated(key, def string, validate func(string) error) Result[string] {
	return Load(key, def, func(s string) (string, error) { return s, nil }, validate)
}

// LoadDuration loads a time.ParseDuration value.
func LoadDuration(key string, def time.Duration, validate func(time.Duration) error) Result[time.Duration] {
	return Load(key, def, time.ParseDuration, validate)
}

// LoadInt loads a base-10 integer.
func LoadInt(key string, def int, validate func(int) error) Result[int] {
	return Load(key, def, strconv.Atoi, validate)
}

// LoadFloat loads a float64.
func LoadFloat(key string, def float64, validate func(float64) error) Result[float64] {
	return Load(key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }, validate)
}

// LoadBool accepts the strconv.ParseBool spellings.
func LoadBool(key string, def bool) Result[bool] {
	return Load(key, def, strconv.ParseBool, nil)
}

// Loader applies results while remembering whether any fallback happened.
type Loader struct {
	logger   *slog.Logger
	metrics  *Metrics
	fallback bool
}

// NewLoader creates a Loader. metrics may be nil.
func NewLoader(logger *slog.Logger, metrics *Metrics) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, metrics: metrics}
}

// Apply returns r.Value, logging and counting the fallback when one was applied.
func Apply[T any](l *Loader, field string, r Result[T]) T {
	if !r.FallbackApplied {
		return r.Value
	}
	l.fallback = true
	l.logger.Warn("configuration fallback applied",
		slog.String("field", field),
		slog.String("warning", r.Warning))
	if l.metrics != nil {
		l.metrics.RecordValidationError(field)
		l.metrics.RecordFallback(field)
	}
	return r.Value
}

// Done publishes the load timestamp and the fallback gauge.
func (l *Loader) Done() {
	if l.metrics == nil {
		return
	}
	l.metrics.SetFallbackActive(l.fallback)
	l.metrics.RecordLoadTimestamp()
}

// FallbackApplied reports whether any Apply call used a default.
func (l *Loader) FallbackApplied() bool {
	return l.fallback
}
