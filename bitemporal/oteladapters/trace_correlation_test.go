package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal/oteladapters"
	"github.com/AntonStoeckl/bitemporal-snapshots-go/testutil/observability/config"
)

func Test_TraceCorrelation_LogsCarryTheSpanStartedByTheTracingCollector(t *testing.T) {
	// setup
	inMemory := config.NewInMemoryTracing()
	defer func() { _ = inMemory.Provider.Shutdown(context.Background()) }()

	tracing := inMemory.Collector
	logProvider := newRecordingProvider()
	logger := oteladapters.NewSlogBridgeLoggerWithProvider("test", logProvider)

	// act
	ctx, span := tracing.StartSpan(context.Background(), "bitemporal.query", nil)
	logger.InfoContext(ctx, "bitemporal operation: query completed")
	tracing.FinishSpan(span, "success", nil)

	// assert
	_, contexts := logProvider.logger.get()
	require.Len(t, contexts, 1)

	spans := inMemory.Exporter.GetSpans()
	require.Len(t, spans, 1)

	logSpanContext := trace.SpanContextFromContext(contexts[0])
	assert.True(t, logSpanContext.IsValid(), "the log record should be emitted inside the span")
	assert.Equal(t, spans[0].SpanContext.TraceID(), logSpanContext.TraceID())
	assert.Equal(t, spans[0].SpanContext.SpanID(), logSpanContext.SpanID())
}

func Test_TraceCorrelation_WithoutSpan(t *testing.T) {
	logProvider := newRecordingProvider()
	logger := oteladapters.NewSlogBridgeLoggerWithProvider("test", logProvider)

	logger.InfoContext(context.Background(), "bitemporal operation: view opened")

	_, contexts := logProvider.logger.get()
	require.Len(t, contexts, 1)
	assert.False(t, trace.SpanContextFromContext(contexts[0]).IsValid())
}
