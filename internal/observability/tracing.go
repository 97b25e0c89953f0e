package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"stowplan/internal/logging"
)

const TracerName = "stowplan"

type TracingConfig struct {
	Enabled     bool
	ServiceName string
	SampleRatio float64
	// Output receives exported spans; defaults to stderr.
	Output io.Writer
}

// TracingConfigFromEnv reads STOWPLAN_TRACING_ENABLED and
// STOWPLAN_TRACING_SAMPLE_RATIO.
func TracingConfigFromEnv() TracingConfig {
	ratio := 1.0
	if raw := os.Getenv("STOWPLAN_TRACING_SAMPLE_RATIO"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed >= 0 && parsed <= 1 {
			ratio = parsed
		}
	}
	return TracingConfig{
		Enabled:     strings.EqualFold(os.Getenv("STOWPLAN_TRACING_ENABLED"), "true"),
		ServiceName: "stowplan",
		SampleRatio: ratio,
	}
}

// InitTracing installs the global tracer provider and returns its shutdown.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("create span exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	log.Info(ctx, "tracing enabled", logging.Float("sample_ratio", cfg.SampleRatio))
	return tp.Shutdown, nil
}

// StartSpan starts a span on the global provider. entityKind and entityID
// are optional.
func StartSpan(ctx context.Context, name, entityKind, entityID string, extra ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs := make([]attribute.KeyValue, 0, len(extra)+2)
	if entityKind != "" {
		attrs = append(attrs, attribute.String("entity_kind", entityKind))
	}
	if entityID != "" {
		attrs = append(attrs, attribute.String("entity_id", entityID))
	}
	attrs = append(attrs, extra...)
	return otel.Tracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
