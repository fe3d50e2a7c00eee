package observability

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// provider is the installed tracer provider, kept only so Shutdown can
// flush it; span creation goes through otel's global tracer (see
// tracing.go) rather than this variable.
var provider *sdktrace.TracerProvider

// Config configures the tracer provider the orchestrator spans its
// resource/window workers against (spec.md §4.1 "wraps every
// resource/window in a tracing span").
type Config struct {
	ServiceName    string
	Environment    string
	SamplingRate   float64
	ExporterType   string // "stdout" is the only exporter this reference engine wires
	BatchTimeout   time.Duration
	MaxExportBatch int
	MaxQueueSize   int
}

// DefaultConfig returns a stdout-exporting, lightly-sampled config
// suitable for a local run.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "cqlbulk",
		Environment:    getEnv("ENVIRONMENT", "development"),
		SamplingRate:   0.1,
		ExporterType:   "stdout",
		BatchTimeout:   5 * time.Second,
		MaxExportBatch: 512,
		MaxQueueSize:   2048,
	}
}

// Initialize sets up the global tracer provider. Safe to call once;
// the engine tolerates a failed Initialize by logging a warning and
// running without tracing (cmd/cqlbulk/main.go).
func Initialize(cfg Config) error {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("observability: building resource: %w", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("observability: building stdout exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRate <= 0:
		sampler = sdktrace.NeverSample()
	case cfg.SamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(cfg.BatchTimeout),
			sdktrace.WithMaxExportBatchSize(cfg.MaxExportBatch),
			sdktrace.WithMaxQueueSize(cfg.MaxQueueSize),
		),
	)

	otel.SetTracerProvider(tp)
	provider = tp
	return nil
}

// Shutdown flushes and stops the tracer provider. A no-op if
// Initialize was never called or failed.
func Shutdown(ctx context.Context) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
