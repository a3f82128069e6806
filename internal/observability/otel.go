// Package observability wires OpenTelemetry tracing and the gin middleware
// that turns HTTP requests into spans. Exporter selection follows this
// service's own three-way OTEL_EXPORTER config ("stdout" | "otlp" |
// "none"), an explicit operator choice rather than one inferred from
// endpoint presence.
package observability

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/clipstream/timeline-core/internal/logger"
)

// Config selects the service identity and exporter backend for tracing.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	Exporter    string // "stdout" | "otlp" | "none"
	Endpoint    string
	SampleRatio float64
}

var (
	initOnce     sync.Once
	shutdownFunc func(context.Context) error
)

// Init installs the global tracer provider. Safe to call multiple times —
// only the first call takes effect, guarding against double-init across
// test packages sharing one process.
func Init(ctx context.Context, log *logger.Logger, cfg Config) func(context.Context) error {
	initOnce.Do(func() {
		if strings.EqualFold(cfg.Exporter, "none") {
			if log != nil {
				log.Info("otel tracing disabled", "exporter", cfg.Exporter)
			}
			shutdownFunc = func(context.Context) error { return nil }
			return
		}

		serviceName := strings.TrimSpace(cfg.ServiceName)
		if serviceName == "" {
			serviceName = "timeline-core"
		}

		res, err := resource.New(ctx,
			resource.WithAttributes(
				semconv.ServiceNameKey.String(serviceName),
				attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
				semconv.ServiceVersionKey.String(strings.TrimSpace(cfg.Version)),
			),
		)
		if err != nil && log != nil {
			log.Warn("otel resource init failed (continuing)", "error", err)
		}

		exporter, err := buildTraceExporter(ctx, log, cfg)
		if err != nil && log != nil {
			log.Warn("otel exporter init failed (continuing)", "error", err)
		}

		ratio := cfg.SampleRatio
		if ratio <= 0 {
			ratio = 0.1
		}
		if ratio > 1 {
			ratio = 1
		}

		var tp *sdktrace.TracerProvider
		if exporter != nil {
			tp = sdktrace.NewTracerProvider(
				sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
				sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
				sdktrace.WithResource(res),
			)
		} else {
			tp = sdktrace.NewTracerProvider(
				sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
				sdktrace.WithResource(res),
			)
		}

		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		shutdownFunc = tp.Shutdown
		if log != nil {
			log.Info("otel tracing initialized", "service", serviceName, "exporter", cfg.Exporter, "endpoint", cfg.Endpoint)
		}
	})
	return shutdownFunc
}

func buildTraceExporter(ctx context.Context, log *logger.Logger, cfg Config) (sdktrace.SpanExporter, error) {
	if strings.EqualFold(cfg.Exporter, "otlp") && cfg.Endpoint != "" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		return otlptracehttp.New(ctx, opts...)
	}
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	if log != nil && strings.EqualFold(cfg.Exporter, "otlp") {
		log.Warn("otel exporter=otlp but no endpoint configured; falling back to stdout")
	}
	return exp, nil
}
