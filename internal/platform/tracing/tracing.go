// Package tracing installs the global OpenTelemetry tracer provider.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/SlpAus/arena-ranking-backend/internal/platform/config"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Shutdown flushes and stops the provider.
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

// Setup installs a provider exporting to stdout when tracing is enabled.
// When disabled the global no-op provider stays in place.
func Setup(cfg config.TracingConfig, log *logger.Logger) (Shutdown, error) {
	return setup(cfg, os.Stdout, log)
}

func setup(cfg config.TracingConfig, w io.Writer, log *logger.Logger) (Shutdown, error) {
	if !cfg.Enabled {
		return noop, nil
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	log.Info("tracing enabled", "service", cfg.ServiceName, "ratio", cfg.SampleRatio)
	return tp.Shutdown, nil
}
