// Package telemetry installs OpenTelemetry tracing for the CLI.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	ProtocolHTTP = "http/protobuf"
	ProtocolGRPC = "grpc"
)

// Config selects the OTLP exporter. An empty Endpoint disables export.
type Config struct {
	Endpoint string            `yaml:"endpoint"`
	Protocol string            `yaml:"protocol"`
	Headers  map[string]string `yaml:"headers"`
}

// Telemetry owns the installed tracer provider, if any.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
}

// Enabled reports whether spans are exported.
func (t Telemetry) Enabled() bool {
	return t.TracerProvider != nil
}

func (t Telemetry) Shutdown(ctx context.Context) error {
	if t.TracerProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var errs []error
	if err := t.TracerProvider.ForceFlush(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := t.TracerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Setup installs a global tracer provider exporting to cfg.Endpoint. With no
// endpoint the global no-op provider stays in place.
func Setup(ctx context.Context, serviceName string, cfg Config) (Telemetry, error) {
	if cfg.Endpoint == "" {
		return Telemetry{}, nil
	}
	r, err := newResource(serviceName)
	if err != nil {
		return Telemetry{}, fmt.Errorf("telemetry resource: %w", err)
	}
	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return Telemetry{}, fmt.Errorf("telemetry exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
	)
	otel.SetTracerProvider(tp)
	return Telemetry{TracerProvider: tp}, nil
}

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if cfg.Protocol == ProtocolGRPC {
		return otlptracegrpc.New(
			ctx,
			otlptracegrpc.WithEndpointURL(cfg.Endpoint),
			otlptracegrpc.WithHeaders(cfg.Headers),
		)
	}
	return otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpointURL(cfg.Endpoint),
		otlptracehttp.WithHeaders(cfg.Headers),
	)
}
