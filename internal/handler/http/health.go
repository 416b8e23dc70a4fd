package http

import (
	"context"
	"database/sql"
	"net/http"
	"sort"
	"time"

	"gift-notify/internal/handler/http/respond"
	"gift-notify/internal/observability/metrics"
	"gift-notify/internal/usecase/notify"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"

	poolDegradedPercent = 80.0
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus is the result of one dependency check.
type CheckStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Checker probes one optional dependency such as the Valkey dedup store.
type Checker func(ctx context.Context) error

// HealthHandler reports database connectivity, pool usage and any extra
// checks. A degraded pool still answers 200.
type HealthHandler struct {
	DB      *sql.DB
	Checks  map[string]Checker
	Version string
	Timeout time.Duration
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	checks := make(map[string]CheckStatus, len(h.Checks)+1)
	if h.DB != nil {
		checks["database"] = h.checkDatabase(ctx)
	} else {
		checks["database"] = CheckStatus{Status: statusUnhealthy, Message: "not configured"}
	}

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.Checks[name](ctx); err != nil {
			checks[name] = CheckStatus{Status: statusUnhealthy, Message: respond.SanitizeError(err)}
			continue
		}
		checks[name] = CheckStatus{Status: statusHealthy}
	}

	status, code := statusHealthy, http.StatusOK
	for _, c := range checks {
		if c.Status == statusUnhealthy {
			status, code = statusUnhealthy, http.StatusServiceUnavailable
			break
		}
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.JSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) CheckStatus {
	if err := h.DB.PingContext(ctx); err != nil {
		return CheckStatus{Status: statusUnhealthy, Message: respond.SanitizeError(err)}
	}

	stats := h.DB.Stats()
	metrics.UpdateDBConnectionStats(stats.InUse, stats.Idle)
	details := map[string]any{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}

	if stats.MaxOpenConnections == 0 {
		return CheckStatus{Status: statusDegraded, Message: "connection pool max connections not configured", Details: details}
	}
	utilization := float64(stats.InUse) / float64(stats.MaxOpenConnections) * 100
	details["utilization_percent"] = utilization
	if utilization >= poolDegradedPercent {
		return CheckStatus{Status: statusDegraded, Message: "connection pool utilization above 80%", Details: details}
	}
	return CheckStatus{Status: statusHealthy, Details: details}
}

// ChannelHealthSource reports per-channel configuration and breaker state.
type ChannelHealthSource interface {
	GetChannelHealth() []notify.ChannelHealthStatus
}

// ChannelHealthResponse is the body of GET /health/channels.
type ChannelHealthResponse struct {
	Status   string                       `json:"status"`
	Channels []notify.ChannelHealthStatus `json:"channels"`
}

// ChannelHealthHandler answers 503 when no channel is enabled and reports
// "degraded" while any enabled channel's circuit breaker is open.
type ChannelHealthHandler struct {
	Source ChannelHealthSource
}

func (h *ChannelHealthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	channels := h.Source.GetChannelHealth()

	enabled, open := 0, 0
	for _, c := range channels {
		if !c.Enabled {
			continue
		}
		enabled++
		if c.CircuitBreakerOpen {
			open++
		}
	}

	status, code := statusHealthy, http.StatusOK
	switch {
	case enabled == 0:
		status, code = statusUnhealthy, http.StatusServiceUnavailable
	case open > 0:
		status = statusDegraded
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.JSON(w, code, ChannelHealthResponse{Status: status, Channels: channels})
}

// ReadyHandler answers 200 once the database accepts connections.
type ReadyHandler struct {
	DB *sql.DB
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.DB == nil {
		respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "database not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.DB.PingContext(ctx); err != nil {
		respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "database not ready"})
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// LiveHandler always answers 200.
type LiveHandler struct{}

func (LiveHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "alive"})
}
