// Package testdoubles provides test doubles (spies) for the observability interfaces of package bitemporal.
//
//   - MetricsCollectorSpy: captures metrics recording calls for verification
//   - ContextualMetricsCollectorSpy: the same, through the context-aware methods
//   - TracingCollectorSpy: captures spans with their start and finish attributes
//   - ContextualLoggerSpy: captures structured logging with context
//   - LogHandlerSpy: captures slog handler calls and attributes
//
// They let the engines' tests verify instrumentation without a telemetry backend.
package testdoubles
