package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName names the instrumentation scope of every span.
const ServiceName = "gift-notify"

// GetTracer returns the tracer of the current global provider. Spans started
// before Init are no-ops.
func GetTracer() trace.Tracer {
	return otel.Tracer(ServiceName)
}

// Init installs an SDK tracer provider sampling ratio of new traces and
// honouring the caller's sampling decision otherwise, plus the W3C trace
// context propagator. Span processors, such as an exporter, are optional.
// The returned function flushes and stops the provider.
func Init(ratio float64, processors ...sdktrace.SpanProcessor) func(context.Context) error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}
	for _, p := range processors {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}
	tp := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown
}
