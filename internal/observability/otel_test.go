package observability

import (
	"context"
	"testing"
)

func TestInitWithExporterNoneSkipsTracerSetup(t *testing.T) {
	shutdown := Init(context.Background(), nil, Config{ServiceName: "test", Exporter: "none"})
	if shutdown == nil {
		t.Fatalf("Init: want non-nil shutdown func even when tracing is disabled")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: want no error, got %v", err)
	}
}

func TestBuildTraceExporterFallsBackToStdoutWithoutEndpoint(t *testing.T) {
	exp, err := buildTraceExporter(context.Background(), nil, Config{Exporter: "otlp", Endpoint: ""})
	if err != nil {
		t.Fatalf("buildTraceExporter: %v", err)
	}
	if exp == nil {
		t.Fatalf("buildTraceExporter: want a stdout exporter fallback, got nil")
	}
}
