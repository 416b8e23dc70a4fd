package notify

import "errors"

// Sentinel errors for notify use case operations.
var (
	// ErrInvalidRequest wraps request validation failures. Callers map it to 400.
	ErrInvalidRequest = errors.New("invalid notification request")

	// ErrInvalidSubscription wraps push subscription validation failures.
	ErrInvalidSubscription = errors.New("invalid push subscription")

	// ErrPushUnavailable means push delivery is not configured or has no store.
	ErrPushUnavailable = errors.New("push notifications are not configured")

	// errGatewayUnhealthy marks a result that counts against the channel's
	// circuit breaker. It never leaves the package.
	errGatewayUnhealthy = errors.New("gateway unhealthy")
)
