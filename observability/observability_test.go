package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig("mindboggle123")

	if cfg.ServiceName != "mindboggle123" {
		t.Errorf("expected ServiceName 'mindboggle123', got %s", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected Endpoint 'localhost:4318', got %s", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %f", cfg.SampleRate)
	}
	if !cfg.Insecure {
		t.Error("expected Insecure to be true")
	}
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig("mindboggle123")
	if cfg.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", cfg.Interval)
	}
}

func TestConfig(t *testing.T) {
	var cfg Config
	if cfg.Enabled() {
		t.Error("expected disabled without endpoint")
	}
	cfg.ApplyDefaults()
	if cfg.SampleRate != 1.0 || cfg.Interval != 15*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	cfg.SampleRate = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for sample rate above 1")
	}
}

func TestSetupDisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{}, "mindboggle123", "dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
}

func TestNewMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}

	ctx := context.Background()
	metrics.RecordNodeStart(ctx)
	metrics.RecordOperation(ctx, "mindboggle123", "recon-all", "completed", 50*time.Millisecond)
	metrics.RecordError(ctx, "EXTERNAL_PROCESS_ERROR", "recon-all")
	metrics.RecordNodeEnd(ctx)
}

func TestTracerAndMeter(t *testing.T) {
	if Tracer("test-tracer") == nil {
		t.Fatal("expected non-nil tracer")
	}
	if Meter("test-meter") == nil {
		t.Fatal("expected non-nil meter")
	}
}

func TestStartSpanRecordsError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx, span := StartSpan(context.Background(), "mindboggle123.recon-all")
	SetSpanError(ctx, fmt.Errorf("boom"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "mindboggle123.recon-all" {
		t.Errorf("unexpected span name %q", spans[0].Name)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected recorded error event")
	}
}

func TestSetSpanErrorNoSpan(t *testing.T) {
	SetSpanError(context.Background(), fmt.Errorf("no span error"))
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tc := range tests {
		if got := samplerFor(tc.rate).Description(); got != tc.want {
			t.Errorf("samplerFor(%v) = %q, want %q", tc.rate, got, tc.want)
		}
	}
}

func TestInitTracer(t *testing.T) {
	cfg := DefaultTracerConfig("mindboggle123")
	tp, err := InitTracer(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("InitTracer failed: %v", err)
	}
	defer otel.SetTracerProvider(otel.GetTracerProvider())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = tp.Shutdown(ctx)
}

func TestInitMeter(t *testing.T) {
	cfg := DefaultMeterConfig("mindboggle123")
	mp, err := InitMeter(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("InitMeter failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = mp.Shutdown(ctx)
}
