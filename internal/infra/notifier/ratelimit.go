package notifier

import (
	"context"
	"time"

	"gift-notify/internal/observability/metrics"

	"golang.org/x/time/rate"
)

// RateLimiter is a per-gateway token bucket. Providers throttle per account,
// so one limiter is shared by every send through the same client.
type RateLimiter struct {
	gateway string
	rate    rate.Limit
	burst   int
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing requestsPerSecond sustained and
// burst immediate requests. gateway labels the wait metrics.
//
//	limiter := NewRateLimiter("sms", 10, 20)
func NewRateLimiter(gateway string, requestsPerSecond float64, burst int) *RateLimiter {
	r := rate.Limit(requestsPerSecond)
	return &RateLimiter{
		gateway: gateway,
		rate:    r,
		burst:   burst,
		limiter: rate.NewLimiter(r, burst),
	}
}

// Allow blocks until a token is available or the context is done.
// Time spent waiting is recorded per gateway.
func (r *RateLimiter) Allow(ctx context.Context) error {
	if r.limiter.Allow() {
		return nil
	}

	start := time.Now()
	err := r.limiter.Wait(ctx)
	metrics.RecordRateLimitWait(r.gateway, time.Since(start))
	return err
}
