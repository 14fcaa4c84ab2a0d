package postgresengine

import (
	"errors"
	"time"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal"
)

// Option defines a functional option for configuring Engine.
type Option func(*Engine) error

// WithTableName sets the name of the entity versions table.
func WithTableName(tableName string) Option {
	return func(e *Engine) error {
		if tableName == "" {
			return bitemporal.ErrEmptyTableName
		}

		e.tableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the Engine.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL queries with execution timing (development use)
// Info level: opened views, row counts, durations (production-safe)
// Warn level: Non-critical issues like cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger bitemporal.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Engine.
// It receives the same messages as the Logger, together with the operation's context,
// so that backends like oteladapters.SlogBridgeLogger can correlate them with the active span.
func WithContextualLogger(logger bitemporal.ContextualLogger) Option {
	return func(e *Engine) error {
		e.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Engine.
// It receives operation durations, returned row counts and database errors.
func WithMetrics(collector bitemporal.MetricsCollector) Option {
	return func(e *Engine) error {
		e.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Engine.
// It receives one span per opened view, query and entity lookup.
func WithTracing(collector bitemporal.TracingCollector) Option {
	return func(e *Engine) error {
		e.tracingCollector = collector
		return nil
	}
}

// WithClock sets the clock ViewAt takes its valid time from.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) error {
		if clock == nil {
			return errors.New("nil clock supplied")
		}

		e.clock = clock

		return nil
	}
}
