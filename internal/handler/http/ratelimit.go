package http

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"gift-notify/internal/handler/http/respond"
)

const (
	defaultMaxCallers = 10000
	callerIdleTTL     = 10 * time.Minute
)

var rateLimitedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected with 429 by route",
	},
	[]string{"route"},
)

type callerBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// CallerLimiter keeps one token bucket per caller. Buckets idle for longer
// than ten minutes are dropped; when MaxCallers is reached the least recently
// seen caller is evicted.
type CallerLimiter struct {
	limit rate.Limit
	burst int
	max   int
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*callerBucket
	lastSweep time.Time
}

// NewCallerLimiter allows each caller rps requests per second with the given
// burst. A non-positive rps disables limiting.
func NewCallerLimiter(rps float64, burst int) *CallerLimiter {
	if burst < 1 {
		burst = 1
	}
	return &CallerLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		max:     defaultMaxCallers,
		now:     time.Now,
		buckets: make(map[string]*callerBucket),
	}
}

// Allow reports whether caller may proceed and, if not, how long to wait.
func (l *CallerLimiter) Allow(caller string) (bool, time.Duration) {
	if l == nil || l.limit <= 0 {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > time.Minute {
		l.sweep(now)
	}
	b, ok := l.buckets[caller]
	if !ok {
		if len(l.buckets) >= l.max {
			l.evictOldest()
		}
		b = &callerBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[caller] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

func (l *CallerLimiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > callerIdleTTL {
			delete(l.buckets, k)
		}
	}
	l.lastSweep = now
}

func (l *CallerLimiter) evictOldest() {
	var oldest string
	var at time.Time
	for k, b := range l.buckets {
		if oldest == "" || b.lastSeen.Before(at) {
			oldest, at = k, b.lastSeen
		}
	}
	delete(l.buckets, oldest)
}

// RateLimit answers 429 with Retry-After once the caller returned by key has
// used up its bucket. Requests with an empty key are not limited.
func RateLimit(route string, l *CallerLimiter, key func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := key(r)
			if caller == "" {
				next.ServeHTTP(w, r)
				return
			}
			if ok, wait := l.Allow(caller); !ok {
				rateLimitedTotal.WithLabelValues(route).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				respond.JSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
