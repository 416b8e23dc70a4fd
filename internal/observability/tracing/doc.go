// Package tracing provides OpenTelemetry tracing integration.
//
// Spans are opened per HTTP request and around each dispatch and gateway
// send. Until a binary calls Init the global no-op provider is in effect.
//
//	ctx, span := tracing.GetTracer().Start(ctx, "notify.Dispatch")
//	defer span.End()
package tracing
