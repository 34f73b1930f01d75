package tracing

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"

	appotel "tripreport/pkg/otel"
)

// InitTracing installs the global tracer provider when OTEL_TRACING_ENABLED
// is set. An exporter that cannot be created leaves tracing as a no-op.
func InitTracing() (func(), error) {
	if !appotel.IsTracingEnabled() {
		slog.Debug("OTEL tracing is disabled")
		return func() {}, nil
	}

	cfg := appotel.GetExporterConfig(appotel.SignalTraces)
	exporter, err := appotel.NewTraceExporter(context.Background(), cfg)
	if err != nil {
		slog.Warn("Failed to create OTLP trace exporter, using noop", "error", err)
		return func() {}, nil
	}

	res, err := appotel.NewResource()
	if err != nil {
		return nil, err
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	slog.Debug("OTEL tracing started", "endpoint", cfg.Endpoint, "protocol", cfg.Protocol)

	return func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			slog.Error("Error shutting down tracer provider", "error", err)
		}
	}, nil
}
