// Package metrics provides Prometheus metrics shared by infrastructure packages.
//
// This package centralizes:
//   - Gateway metrics (provider requests, latency, client-side rate limiting)
//   - Database query and connection pool metrics
//
// Delivery level metrics (dispatches, fallbacks, drops) live next to the
// orchestrator in internal/usecase/notify. HTTP metrics live in the HTTP
// handler package.
//
// Example usage:
//
//	start := time.Now()
//	// ... call provider ...
//	metrics.RecordGatewayRequest("sms", "success", time.Since(start))
package metrics
