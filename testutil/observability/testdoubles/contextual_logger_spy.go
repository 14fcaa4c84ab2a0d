package testdoubles

import (
	"context"
	"slices"
	"sync"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal"
)

// Log levels as recorded by ContextualLoggerSpy.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// ContextualLoggerSpy captures contextual log calls in the order they were made.
// It keeps the context of every call, so tests can check which span a record was emitted in.
type ContextualLoggerSpy struct {
	records     []SpyContextualLogRecord
	mu          sync.Mutex
	recordCalls bool
}

// SpyContextualLogRecord represents a recorded contextual log call.
type SpyContextualLogRecord struct {
	Level   string
	Message string
	Args    []any
	Context context.Context
}

// Attribute returns the value logged for key, looking at the args as slog-style key/value pairs.
func (r SpyContextualLogRecord) Attribute(key string) (any, bool) {
	for i := 0; i+1 < len(r.Args); i += 2 {
		if k, ok := r.Args[i].(string); ok && k == key {
			return r.Args[i+1], true
		}
	}

	return nil, false
}

func NewContextualLoggerSpy(recordCalls bool) *ContextualLoggerSpy {
	return &ContextualLoggerSpy{recordCalls: recordCalls}
}

func (s *ContextualLoggerSpy) DebugContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, LevelDebug, msg, args)
}

func (s *ContextualLoggerSpy) InfoContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, LevelInfo, msg, args)
}

func (s *ContextualLoggerSpy) WarnContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, LevelWarn, msg, args)
}

func (s *ContextualLoggerSpy) ErrorContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, LevelError, msg, args)
}

func (s *ContextualLoggerSpy) record(ctx context.Context, level, msg string, args []any) {
	if !s.recordCalls {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, SpyContextualLogRecord{
		Level:   level,
		Message: msg,
		Args:    slices.Clone(args),
		Context: ctx,
	})
}

// Reset clears all recorded log calls.
func (s *ContextualLoggerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
}

// Records returns a copy of all records of the given level, oldest first.
func (s *ContextualLoggerSpy) Records(level string) []SpyContextualLogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matching []SpyContextualLogRecord
	for _, record := range s.records {
		if record.Level == level {
			matching = append(matching, record)
		}
	}

	return matching
}

func (s *ContextualLoggerSpy) GetDebugRecords() []SpyContextualLogRecord {
	return s.Records(LevelDebug)
}

func (s *ContextualLoggerSpy) GetErrorRecords() []SpyContextualLogRecord {
	return s.Records(LevelError)
}

// GetTotalRecordCount returns the number of records across all levels.
func (s *ContextualLoggerSpy) GetTotalRecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

// HasLog reports whether a record with level and message exists.
func (s *ContextualLoggerSpy) HasLog(level, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.ContainsFunc(s.records, func(record SpyContextualLogRecord) bool {
		return record.Level == level && record.Message == message
	})
}

func (s *ContextualLoggerSpy) HasDebugLog(message string) bool {
	return s.HasLog(LevelDebug, message)
}

func (s *ContextualLoggerSpy) HasInfoLog(message string) bool {
	return s.HasLog(LevelInfo, message)
}

func (s *ContextualLoggerSpy) HasWarnLog(message string) bool {
	return s.HasLog(LevelWarn, message)
}

func (s *ContextualLoggerSpy) HasErrorLog(message string) bool {
	return s.HasLog(LevelError, message)
}

var _ bitemporal.ContextualLogger = (*ContextualLoggerSpy)(nil)
