package observability

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
)

func TestSetup(t *testing.T) {
	tp, err := Setup(context.Background(), "localhost:4318")
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if tp == nil {
		t.Fatal("Setup() returned a nil provider")
	}
	if otel.GetTracerProvider() != tp {
		t.Error("global tracer provider was not installed")
	}

	// Nothing was recorded, so shutdown must not need a collector.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
