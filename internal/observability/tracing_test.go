package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/signalsfoundry/engagement-simulator/core"
	"github.com/signalsfoundry/engagement-simulator/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitTracingDisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracingStdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "engagement-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Output:      &buf,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "engage")
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown, nil)

	if !strings.Contains(buf.String(), `"Name": "engage"`) {
		t.Fatalf("expected exported span in output, got %q", buf.String())
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	if err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}

func TestRunAttributes(t *testing.T) {
	start := attribute.NewSet(RunStartAttributes("eng-1", model.DefaultSettings())...)
	if v, ok := start.Value(AttrEngagementID); !ok || v.AsString() != "eng-1" {
		t.Fatalf("engagement id = %v", v)
	}
	if v, _ := start.Value(AttrTarget); v.AsString() != "tank" {
		t.Fatalf("target = %v", v)
	}
	if v, _ := start.Value(AttrMissileSpeed); v.AsFloat64() != 600 {
		t.Fatalf("missile speed = %v", v)
	}

	last := core.Snapshot{ElapsedTime: 9.64, Metrics: core.ComputeMetrics(12)}
	end := attribute.NewSet(RunEndAttributes("terminated", 482, last)...)
	if v, _ := end.Value(AttrOutcome); v.AsString() != "terminated" {
		t.Fatalf("outcome = %v", v)
	}
	if v, _ := end.Value(AttrTicks); v.AsInt64() != 482 {
		t.Fatalf("ticks = %v", v)
	}
	if v, _ := end.Value(AttrFinalRangeMeter); v.AsFloat64() != 1.2 {
		t.Fatalf("final range = %v", v)
	}
}
