package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetupProviderExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()

	shutdown, err := SetupProvider(ctx, Config{
		ServiceName: "threadgate-test",
		Environment: "development",
		Enabled:     true,
		Writer:      &buf,
	})
	if err != nil {
		t.Fatalf("SetupProvider() error = %v", err)
	}

	_, span := otel.Tracer("test").Start(ctx, "relay-stream")
	span.End()

	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "relay-stream") {
		t.Error("exported spans missing the recorded span name")
	}
}

func TestSetupProviderDisabledIsNoop(t *testing.T) {
	shutdown, err := SetupProvider(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("SetupProvider() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("no-op shutdown returned %v", err)
	}
}
