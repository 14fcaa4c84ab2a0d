// Package config builds in-memory OpenTelemetry providers for tests of package bitemporal.
//
// The collectors it returns are the real oteladapters implementations, backed by
// an in-memory span exporter or a manual metric reader, so tests can inspect what
// an engine emitted without a telemetry backend.
package config

import (
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal/oteladapters"
)

const instrumentationName = "bitemporal-test"

// InMemoryTracing holds a TracingCollector and the exporter that receives its finished spans.
type InMemoryTracing struct {
	Collector *oteladapters.TracingCollector
	Exporter  *tracetest.InMemoryExporter
	Provider  *sdktrace.TracerProvider
}

// NewInMemoryTracing exports spans synchronously, so they are visible as soon as they end.
func NewInMemoryTracing() InMemoryTracing {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	return InMemoryTracing{
		Collector: oteladapters.NewTracingCollector(provider.Tracer(instrumentationName)),
		Exporter:  exporter,
		Provider:  provider,
	}
}

// ManualMetrics holds a MetricsCollector and the reader to collect its instruments from.
type ManualMetrics struct {
	Collector *oteladapters.MetricsCollector
	Reader    *sdkmetric.ManualReader
	Provider  *sdkmetric.MeterProvider
}

func NewManualMetrics() ManualMetrics {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return ManualMetrics{
		Collector: oteladapters.NewMetricsCollector(provider.Meter(instrumentationName)),
		Reader:    reader,
		Provider:  provider,
	}
}
