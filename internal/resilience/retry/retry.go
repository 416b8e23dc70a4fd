// Package retry runs an operation a bounded number of times, waiting between
// calls according to a Config.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"syscall"
	"time"

	"gift-notify/internal/observability/logging"
)

// Config describes how often and how patiently an operation is retried.
type Config struct {
	MaxAttempts  int           // total calls, first one included
	InitialDelay time.Duration // wait before the second call
	MaxDelay     time.Duration // cap applied after growth
	Multiplier   float64       // growth per wait; <= 1 keeps the delay fixed

	// JitterFraction adds up to this share of the delay at random (0..1).
	JitterFraction float64

	// Retryable decides whether an error earns another call. Nil means IsRetryable.
	Retryable func(error) bool
}

// SMSConfig is the SMS gateway policy: one more call after a fixed delay,
// only for transport failures and 5xx answers.
func SMSConfig(delay time.Duration) Config {
	return Config{
		MaxAttempts:  2,
		InitialDelay: delay,
		MaxDelay:     delay,
		Multiplier:   1,
		Retryable:    IsServerOrNetworkError,
	}
}

// DBConfig is used while waiting for the database to accept connections.
func DBConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       time.Second,
		Multiplier:     2,
		JitterFraction: 0.1,
	}
}

// WithBackoff calls fn until it succeeds, returns a non-retryable error, runs
// out of attempts or ctx ends. With more than one attempt configured, an
// exhausted budget is reported wrapped around the last error.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	attempts := max(cfg.MaxAttempts, 1)
	logger := logging.FromContext(ctx)

	delay := cfg.InitialDelay
	var err error
	for n := 1; ; n++ {
		if err = fn(); err == nil {
			if n > 1 {
				logger.Info("call succeeded on retry", slog.Int("attempt", n))
			}
			return nil
		}
		if !retryable(err) {
			logger.Debug("error not retryable", slog.Int("attempt", n), slog.Any("error", err))
			return err
		}
		if n == attempts {
			break
		}

		logger.Warn("call failed, will retry",
			slog.Int("attempt", n),
			slog.Int("max_attempts", attempts),
			slog.Duration("delay", delay),
			slog.Any("error", err))

		if werr := sleep(ctx, delay); werr != nil {
			return fmt.Errorf("retry aborted: %w", werr)
		}
		delay = next(delay, cfg)
	}

	if attempts == 1 {
		return err
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func next(d time.Duration, cfg Config) time.Duration {
	if cfg.Multiplier > 1 {
		d = time.Duration(float64(d) * cfg.Multiplier)
	}
	if cfg.MaxDelay > 0 && d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	return addJitter(d, cfg.JitterFraction)
}

// IsRetryable accepts timeouts, refused or reset connections, HTTP 5xx, 408
// and 429. Context cancellation and deadlines are final.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	for _, errno := range []syscall.Errno{syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT, syscall.ENETUNREACH} {
		if errors.Is(err, errno) {
			return true
		}
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 ||
			httpErr.StatusCode == http.StatusTooManyRequests ||
			httpErr.StatusCode == http.StatusRequestTimeout
	}
	return false
}

// IsServerOrNetworkError retries any transport failure and HTTP 5xx. Provider
// 4xx answers, 429 included, are final.
func IsServerOrNetworkError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}
	return true
}

// HTTPError carries a non-2xx status out of fn.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func addJitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return d
	}
	fraction = min(fraction, 1)
	// #nosec G404 -- jitter does not need a CSPRNG
	return d + time.Duration(rand.Float64()*float64(d)*fraction)
}
