package retry

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:    attempts,
		InitialDelay:   5 * time.Millisecond,
		MaxDelay:       20 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0,
	}
}

func TestWithBackoff_SuccessFirstAttempt(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), fastConfig(3), func() error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestWithBackoff_SuccessAfterRetry(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), fastConfig(3), func() error {
		attempts++
		if attempts < 3 {
			return &HTTPError{StatusCode: 503, Message: "Service Unavailable"}
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithBackoff_MaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), fastConfig(3), func() error {
		attempts++
		return &HTTPError{StatusCode: 500, Message: "Internal Server Error"}
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 500 {
		t.Errorf("expected wrapped HTTP 500, got %v", err)
	}
}

func TestWithBackoff_NonRetryableError(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), fastConfig(3), func() error {
		attempts++
		return &HTTPError{StatusCode: 400, Message: "Bad Request"}
	})

	if err == nil {
		t.Error("expected error, got nil")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt for non-retryable error, got %d", attempts)
	}
}

func TestWithBackoff_ContextCanceled(t *testing.T) {
	cfg := fastConfig(5)
	cfg.InitialDelay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := WithBackoff(ctx, cfg, func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return &HTTPError{StatusCode: 500, Message: "Server Error"}
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled error, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestWithBackoff_CustomRetryable(t *testing.T) {
	cfg := fastConfig(3)
	cfg.Retryable = func(err error) bool { return false }

	attempts := 0
	_ = WithBackoff(context.Background(), cfg, func() error {
		attempts++
		return &HTTPError{StatusCode: 503, Message: "Service Unavailable"}
	})

	if attempts != 1 {
		t.Errorf("expected custom policy to stop after 1 attempt, got %d", attempts)
	}
}

func TestWithBackoff_SingleAttemptReturnsRawError(t *testing.T) {
	want := &HTTPError{StatusCode: 502, Message: "Bad Gateway"}
	err := WithBackoff(context.Background(), fastConfig(1), func() error { return want })

	if err != want {
		t.Errorf("expected unwrapped error, got %v", err)
	}
}

/* ───────────────────────── SMS policy ───────────────────────── */

func TestSMSConfig(t *testing.T) {
	cfg := SMSConfig(250 * time.Millisecond)

	if cfg.MaxAttempts != 2 {
		t.Errorf("expected MaxAttempts=2, got %d", cfg.MaxAttempts)
	}
	if cfg.InitialDelay != 250*time.Millisecond || cfg.MaxDelay != 250*time.Millisecond {
		t.Errorf("expected fixed 250ms delay, got %v/%v", cfg.InitialDelay, cfg.MaxDelay)
	}
	if cfg.JitterFraction != 0 {
		t.Errorf("expected no jitter, got %f", cfg.JitterFraction)
	}
	if cfg.Retryable == nil {
		t.Error("expected SMS retry policy to be set")
	}
}

func TestSMSConfig_RetriesOnceOn5xx(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), SMSConfig(time.Millisecond), func() error {
		attempts++
		return &HTTPError{StatusCode: 503, Message: "Service Unavailable"}
	})

	if err == nil {
		t.Error("expected error, got nil")
	}
	if attempts != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", attempts)
	}
}

func TestSMSConfig_DoesNotRetry429(t *testing.T) {
	attempts := 0
	_ = WithBackoff(context.Background(), SMSConfig(time.Millisecond), func() error {
		attempts++
		return &HTTPError{StatusCode: 429, Message: "Too Many Requests"}
	})

	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestIsServerOrNetworkError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"transport failure", errors.New("dial tcp: connection refused"), true},
		{"deadline", context.DeadlineExceeded, true},
		{"HTTP 500", &HTTPError{StatusCode: 500}, true},
		{"HTTP 503", &HTTPError{StatusCode: 503}, true},
		{"HTTP 429", &HTTPError{StatusCode: 429}, false},
		{"HTTP 400", &HTTPError{StatusCode: 400}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsServerOrNetworkError(tt.err); got != tt.want {
				t.Errorf("IsServerOrNetworkError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil error", nil, false},
		{"context canceled", context.Canceled, false},
		{"context deadline exceeded", context.DeadlineExceeded, false},
		{"HTTP 500 error", &HTTPError{StatusCode: 500, Message: "Internal Server Error"}, true},
		{"HTTP 503 error", &HTTPError{StatusCode: 503, Message: "Service Unavailable"}, true},
		{"HTTP 429 error", &HTTPError{StatusCode: 429, Message: "Too Many Requests"}, true},
		{"HTTP 408 error", &HTTPError{StatusCode: 408, Message: "Request Timeout"}, true},
		{"HTTP 400 error", &HTTPError{StatusCode: 400, Message: "Bad Request"}, false},
		{"HTTP 404 error", &HTTPError{StatusCode: 404, Message: "Not Found"}, false},
		{"ECONNREFUSED", syscall.ECONNREFUSED, true},
		{"ECONNRESET", syscall.ECONNRESET, true},
		{"ETIMEDOUT", syscall.ETIMEDOUT, true},
		{"generic error", errors.New("some error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsRetryable(tt.err); result != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", result, tt.retryable)
			}
		})
	}
}

func TestDBConfig(t *testing.T) {
	cfg := DBConfig()

	if cfg.MaxAttempts != 3 {
		t.Errorf("expected MaxAttempts=3, got %d", cfg.MaxAttempts)
	}
	if cfg.InitialDelay != 100*time.Millisecond {
		t.Errorf("expected InitialDelay=100ms, got %v", cfg.InitialDelay)
	}
}

func TestHTTPError_Error(t *testing.T) {
	err := &HTTPError{StatusCode: 500, Message: "Internal Server Error"}
	if err.Error() != "HTTP 500: Internal Server Error" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestAddJitter(t *testing.T) {
	duration := 100 * time.Millisecond
	for i := 0; i < 10; i++ {
		result := addJitter(duration, 0.2)
		if result < duration || result > time.Duration(float64(duration)*1.2) {
			t.Errorf("jitter out of range: %v", result)
		}
	}
	if addJitter(duration, 0) != duration {
		t.Error("expected no jitter with fraction=0")
	}
}
