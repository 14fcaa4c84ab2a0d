package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal"
)

const (
	spanNameOpenView = "bitemporal.open_view"
	spanNameQuery    = "bitemporal.query"
	spanNameEntity   = "bitemporal.entity"
	spanNameEntityTx = "bitemporal.entity_tx"

	metricOpenViewDuration = "bitemporal_open_view_duration_seconds"
	metricQueryDuration    = "bitemporal_query_duration_seconds"
	metricEntityDuration   = "bitemporal_entity_duration_seconds"
	metricEntityTxDuration = "bitemporal_entity_tx_duration_seconds"
	metricRowsReturned     = "bitemporal_rows_returned"
	metricDatabaseErrors   = "bitemporal_database_errors_total"

	spanAttrOperation = "operation"
	spanAttrErrorType = "error_type"
	spanAttrRowCount  = "row_count"
	spanAttrDuration  = "duration_ms"
	spanAttrValidTime = "valid_time"
	spanAttrTxTime    = "tx_time"
	spanAttrFound     = "found"
	spanAttrEntityID  = "entity_id"

	labelStatus = "status"

	statusSuccess  = "success"
	statusError    = "error"
	statusCanceled = "canceled"
	statusTimeout  = "timeout"

	errorTypeMalformedQuery      = "malformed_query"
	errorTypeBuildQuery          = "build_query"
	errorTypeDatabaseQuery       = "database_query"
	errorTypeRowScan             = "row_scan"
	errorTypeDecode              = "decode"
	errorTypeMalformedIdentifier = "malformed_identifier"
)

// operation names one kind of engine call for logs, spans and metrics.
type operation struct {
	name           string
	spanName       string
	durationMetric string
}

var (
	openViewOperation = operation{name: "open_view", spanName: spanNameOpenView, durationMetric: metricOpenViewDuration}
	queryOperation    = operation{name: "query", spanName: spanNameQuery, durationMetric: metricQueryDuration}
	entityOperation   = operation{name: "entity", spanName: spanNameEntity, durationMetric: metricEntityDuration}
	entityTxOperation = operation{name: "entity_tx", spanName: spanNameEntityTx, durationMetric: metricEntityTxDuration}
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// statusFor classifies a failure, so that canceled and timed out calls are not reported as database errors.
func statusFor(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return statusCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return statusTimeout
	default:
		return statusError
	}
}

// === Logging ===

// logQueryWithDuration logs SQL queries with execution time at debug level.
func (e Engine) logQueryWithDuration(
	ctx context.Context,
	sqlQuery sqlQueryString,
	action string,
	duration time.Duration,
) {

	args := []any{logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery}

	if e.logger != nil {
		e.logger.Debug(logMsgSQLExecuted+action, args...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, args...)
	}
}

// logOperation logs operational information at info level.
func (e Engine) logOperation(ctx context.Context, action string, args ...any) {
	if e.logger != nil {
		e.logger.Info(logMsgOperation+action, args...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}
}

// logWarn logs non-critical issues at warn level.
func (e Engine) logWarn(ctx context.Context, message string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(message, args...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.WarnContext(ctx, message, args...)
	}
}

// logError logs error information at error level.
func (e Engine) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if e.logger != nil {
		e.logger.Error(message, allArgs...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// === Metrics Observer Pattern ===

// operationMetricsObserver encapsulates the metrics collection for one engine call.
type operationMetricsObserver struct {
	collector bitemporal.MetricsCollector
	ctx       context.Context
	op        operation
}

// startOperationMetrics creates a new metrics observer for op.
func (e Engine) startOperationMetrics(ctx context.Context, op operation) *operationMetricsObserver {
	return &operationMetricsObserver{
		collector: e.metricsCollector,
		ctx:       ctx,
		op:        op,
	}
}

// recordSuccess records the duration and the number of returned rows of a successful call.
func (o *operationMetricsObserver) recordSuccess(rowCount int, duration time.Duration) {
	if o.collector == nil {
		return
	}

	labels := o.labels(statusSuccess)
	o.recordDuration(duration, labels)

	if contextual, ok := o.collector.(bitemporal.ContextualMetricsCollector); ok {
		contextual.RecordValueContext(o.ctx, metricRowsReturned, float64(rowCount), labels)
	} else {
		o.collector.RecordValue(metricRowsReturned, float64(rowCount), labels)
	}
}

// recordError records the duration of a failed call and counts the error.
func (o *operationMetricsObserver) recordError(err error, errorType string, duration time.Duration) {
	if o.collector == nil {
		return
	}

	labels := o.labels(statusFor(err))
	o.recordDuration(duration, labels)

	errorLabels := o.labels(statusFor(err))
	errorLabels[spanAttrErrorType] = errorType

	if contextual, ok := o.collector.(bitemporal.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(o.ctx, metricDatabaseErrors, errorLabels)
	} else {
		o.collector.IncrementCounter(metricDatabaseErrors, errorLabels)
	}
}

func (o *operationMetricsObserver) recordDuration(duration time.Duration, labels map[string]string) {
	if contextual, ok := o.collector.(bitemporal.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(o.ctx, o.op.durationMetric, duration, labels)
	} else {
		o.collector.RecordDuration(o.op.durationMetric, duration, labels)
	}
}

func (o *operationMetricsObserver) labels(status string) map[string]string {
	return map[string]string{
		spanAttrOperation: o.op.name,
		labelStatus:       status,
	}
}

// === Tracing Observer Pattern ===

// operationTracingObserver encapsulates the span lifecycle of one engine call.
type operationTracingObserver struct {
	collector bitemporal.TracingCollector
	span      bitemporal.SpanContext
}

// startOperationTracing starts a span for op and returns the observer with the span's context.
func (e Engine) startOperationTracing(
	ctx context.Context,
	op operation,
	attrs map[string]string,
) (*operationTracingObserver, context.Context) {

	if e.tracingCollector == nil {
		return &operationTracingObserver{}, ctx
	}

	spanAttrs := map[string]string{spanAttrOperation: op.name}
	for key, value := range attrs {
		spanAttrs[key] = value
	}

	newCtx, span := e.tracingCollector.StartSpan(ctx, op.spanName, spanAttrs)

	return &operationTracingObserver{
		collector: e.tracingCollector,
		span:      span,
	}, newCtx
}

// finishSuccess completes the span of a successful call.
func (o *operationTracingObserver) finishSuccess(attrs map[string]string, duration time.Duration) {
	if o.span == nil {
		return
	}

	finishAttrs := map[string]string{spanAttrDuration: formatDuration(duration)}
	for key, value := range attrs {
		finishAttrs[key] = value
	}

	o.span.SetStatus(statusSuccess)
	o.collector.FinishSpan(o.span, statusSuccess, finishAttrs)
}

// finishError completes the span of a failed call with error details.
func (o *operationTracingObserver) finishError(err error, errorType string, duration time.Duration) {
	if o.span == nil {
		return
	}

	status := statusFor(err)
	attrs := map[string]string{spanAttrErrorType: errorType}
	if duration > 0 {
		attrs[spanAttrDuration] = formatDuration(duration)
	}

	o.span.SetStatus(status)
	o.collector.FinishSpan(o.span, status, attrs)
}

func formatDuration(duration time.Duration) string {
	return fmt.Sprintf("%.2f", toMilliseconds(duration))
}

func formatRowCount(rowCount int) string {
	return strconv.Itoa(rowCount)
}
