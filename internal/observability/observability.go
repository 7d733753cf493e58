// Package observability bootstraps the OpenTelemetry tracing pipeline,
// adapted from the teacher's internal/observability.SetupOTelSDK: same
// stdouttrace exporter + batcher shape, renamed to this service and with
// the tracer handed back to callers instead of only registered globally, so
// the processor can start per-event spans explicitly (SPEC_FULL §4.12).
package observability

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// ServiceName is reported as the otel resource's service.name attribute.
const ServiceName = "mirrorcurve"

// Setup bootstraps a stdout trace exporter and batching trace provider,
// registers it globally, and returns a tracer for the processor plus a
// shutdown function to call on graceful exit.
func Setup(ctx context.Context) (tracer oteltrace.Tracer, shutdown func(context.Context) error, err error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(ServiceName)))
	if err != nil {
		return nil, nil, err
	}

	provider := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	shutdown = func(ctx context.Context) error {
		if err := provider.Shutdown(ctx); err != nil {
			log.Printf("observability: shutdown error: %v", err)
			return err
		}
		return nil
	}

	return provider.Tracer(ServiceName), shutdown, nil
}
