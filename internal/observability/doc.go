// Package observability provides logging, Prometheus metrics and OpenTelemetry
// tracing for the delivery engine.
//
// Subpackages:
//   - logging: Structured logging utilities with slog, phone masking
//   - metrics: Gateway and database Prometheus metrics
//   - tracing: OpenTelemetry tracer and HTTP middleware
//
// Example usage:
//
//	logger := logging.NewLogger()
//	slog.SetDefault(logger)
//
//	ctx, span := tracing.GetTracer().Start(ctx, "notify.Dispatch")
//	defer span.End()
package observability
