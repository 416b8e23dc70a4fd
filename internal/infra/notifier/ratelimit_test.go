package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"gift-notify/internal/observability/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRateLimiter_Allow(t *testing.T) {
	t.Run("TC-1: should allow burst requests immediately", func(t *testing.T) {
		// Arrange
		limiter := NewRateLimiter("test-burst", 2.0, 5)
		ctx := context.Background()

		// Act
		start := time.Now()
		for i := 0; i < 5; i++ {
			if err := limiter.Allow(ctx); err != nil {
				t.Fatalf("request %d should succeed: %v", i+1, err)
			}
		}

		// Assert
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			t.Errorf("burst requests should be immediate, took %v", elapsed)
		}
	})

	t.Run("TC-2: should block and record the wait when exhausted", func(t *testing.T) {
		// Arrange
		limiter := NewRateLimiter("test-wait", 1.0, 1)
		ctx := context.Background()
		if err := limiter.Allow(ctx); err != nil {
			t.Fatalf("first request should succeed: %v", err)
		}
		before := testutil.ToFloat64(metrics.GatewayRateLimitWaits.WithLabelValues("test-wait"))

		// Act
		ctxWithTimeout, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		err := limiter.Allow(ctxWithTimeout)

		// Assert
		if err == nil {
			t.Error("expected error waiting past the deadline")
		}
		after := testutil.ToFloat64(metrics.GatewayRateLimitWaits.WithLabelValues("test-wait"))
		if after != before+1 {
			t.Errorf("expected wait to be recorded, before=%v after=%v", before, after)
		}
	})

	t.Run("TC-3: should respect context cancellation", func(t *testing.T) {
		// Arrange
		limiter := NewRateLimiter("test-cancel", 0.5, 1)
		_ = limiter.Allow(context.Background())
		ctx, cancel := context.WithCancel(context.Background())

		errChan := make(chan error, 1)
		go func() { errChan <- limiter.Allow(ctx) }()

		// Act
		time.Sleep(20 * time.Millisecond)
		cancel()
		err := <-errChan

		// Assert
		if err == nil {
			t.Fatal("expected cancellation error")
		}
		if !errors.Is(err, context.Canceled) && err.Error() != "rate: Wait(n=1) would exceed context deadline" {
			t.Logf("got limiter error %v", err)
		}
	})
}

func TestNewRateLimiter(t *testing.T) {
	limiter := NewRateLimiter("sms", 2.0, 5)

	if limiter.gateway != "sms" {
		t.Errorf("expected gateway=sms, got %q", limiter.gateway)
	}
	if limiter.burst != 5 {
		t.Errorf("expected burst=5, got %d", limiter.burst)
	}
	if float64(limiter.rate) != 2.0 {
		t.Errorf("expected rate=2, got %f", float64(limiter.rate))
	}
}
