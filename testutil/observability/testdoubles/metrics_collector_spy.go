package testdoubles

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal"
)

// MetricKind tells which collector method produced a SpyMetricRecord.
type MetricKind string

const (
	KindDuration MetricKind = "duration"
	KindCounter  MetricKind = "counter"
	KindValue    MetricKind = "value"
)

// SpyMetricRecord is one call to a MetricsCollector method.
// Duration is set for KindDuration records, Value for KindValue records.
type SpyMetricRecord struct {
	Kind     MetricKind
	Metric   string
	Duration time.Duration
	Value    float64
	Labels   map[string]string
}

// MetricsCollectorSpy captures metrics calls in the order they were made.
type MetricsCollectorSpy struct {
	records     []SpyMetricRecord
	mu          sync.Mutex
	recordCalls bool
}

func NewMetricsCollectorSpy(recordCalls bool) *MetricsCollectorSpy {
	return &MetricsCollectorSpy{recordCalls: recordCalls}
}

func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.record(SpyMetricRecord{Kind: KindDuration, Metric: metric, Duration: duration, Labels: maps.Clone(labels)})
}

func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.record(SpyMetricRecord{Kind: KindCounter, Metric: metric, Labels: maps.Clone(labels)})
}

func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	s.record(SpyMetricRecord{Kind: KindValue, Metric: metric, Value: value, Labels: maps.Clone(labels)})
}

func (s *MetricsCollectorSpy) record(record SpyMetricRecord) {
	if !s.recordCalls {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record)
}

// Records returns a copy of the records of kind, oldest first.
func (s *MetricsCollectorSpy) Records(kind MetricKind) []SpyMetricRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matching []SpyMetricRecord
	for _, record := range s.records {
		if record.Kind == kind {
			matching = append(matching, record)
		}
	}

	return matching
}

func (s *MetricsCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
}

func (s *MetricsCollectorSpy) GetDurationRecordCount() int {
	return len(s.Records(KindDuration))
}

func (s *MetricsCollectorSpy) GetCounterRecordCount() int {
	return len(s.Records(KindCounter))
}

func (s *MetricsCollectorSpy) GetValueRecordCount() int {
	return len(s.Records(KindValue))
}

func (s *MetricsCollectorSpy) count(kind MetricKind, metric string) int {
	count := 0
	for _, record := range s.Records(kind) {
		if record.Metric == metric {
			count++
		}
	}

	return count
}

func (s *MetricsCollectorSpy) CountDurationRecordsForMetric(metric string) int {
	return s.count(KindDuration, metric)
}

func (s *MetricsCollectorSpy) CountCounterRecordsForMetric(metric string) int {
	return s.count(KindCounter, metric)
}

func (s *MetricsCollectorSpy) CountValueRecordsForMetric(metric string) int {
	return s.count(KindValue, metric)
}

// MetricRecordMatcher collects conditions on a metric; Assert holds if any record of it meets all of them.
type MetricRecordMatcher struct {
	collector  *MetricsCollectorSpy
	kind       MetricKind
	metric     string
	conditions []func(SpyMetricRecord) bool
}

func (s *MetricsCollectorSpy) HasDurationRecordForMetric(metric string) *MetricRecordMatcher {
	return &MetricRecordMatcher{collector: s, kind: KindDuration, metric: metric}
}

func (s *MetricsCollectorSpy) HasCounterRecordForMetric(metric string) *MetricRecordMatcher {
	return &MetricRecordMatcher{collector: s, kind: KindCounter, metric: metric}
}

func (s *MetricsCollectorSpy) HasValueRecordForMetric(metric string) *MetricRecordMatcher {
	return &MetricRecordMatcher{collector: s, kind: KindValue, metric: metric}
}

// WithLabel requires the label key with the given value.
func (m *MetricRecordMatcher) WithLabel(key, value string) *MetricRecordMatcher {
	m.conditions = append(m.conditions, func(record SpyMetricRecord) bool {
		actual, exists := record.Labels[key]
		return exists && actual == value
	})

	return m
}

func (m *MetricRecordMatcher) WithOperation(operation string) *MetricRecordMatcher {
	return m.WithLabel("operation", operation)
}

func (m *MetricRecordMatcher) WithStatus(status string) *MetricRecordMatcher {
	return m.WithLabel("status", status)
}

func (m *MetricRecordMatcher) WithErrorType(errorType string) *MetricRecordMatcher {
	return m.WithLabel("error_type", errorType)
}

// WithValue requires a value record carrying value.
func (m *MetricRecordMatcher) WithValue(value float64) *MetricRecordMatcher {
	m.conditions = append(m.conditions, func(record SpyMetricRecord) bool { return record.Value == value })
	return m
}

func (m *MetricRecordMatcher) Assert() bool {
	return slices.ContainsFunc(m.collector.Records(m.kind), func(record SpyMetricRecord) bool {
		if record.Metric != m.metric {
			return false
		}

		for _, condition := range m.conditions {
			if !condition(record) {
				return false
			}
		}

		return true
	})
}

// ContextualMetricsCollectorSpy is a MetricsCollectorSpy that also implements bitemporal.ContextualMetricsCollector.
// It counts the calls that arrived through the context-aware methods.
type ContextualMetricsCollectorSpy struct {
	*MetricsCollectorSpy
	contextualCalls int
	ctxMu           sync.Mutex
}

func NewContextualMetricsCollectorSpy(recordCalls bool) *ContextualMetricsCollectorSpy {
	return &ContextualMetricsCollectorSpy{MetricsCollectorSpy: NewMetricsCollectorSpy(recordCalls)}
}

func (s *ContextualMetricsCollectorSpy) RecordDurationContext(
	_ context.Context,
	metric string,
	duration time.Duration,
	labels map[string]string,
) {

	s.countContextualCall()
	s.RecordDuration(metric, duration, labels)
}

func (s *ContextualMetricsCollectorSpy) IncrementCounterContext(_ context.Context, metric string, labels map[string]string) {
	s.countContextualCall()
	s.IncrementCounter(metric, labels)
}

func (s *ContextualMetricsCollectorSpy) RecordValueContext(
	_ context.Context,
	metric string,
	value float64,
	labels map[string]string,
) {

	s.countContextualCall()
	s.RecordValue(metric, value, labels)
}

// GetContextualCallCount returns how many calls arrived through the context-aware methods.
func (s *ContextualMetricsCollectorSpy) GetContextualCallCount() int {
	s.ctxMu.Lock()
	defer s.ctxMu.Unlock()

	return s.contextualCalls
}

func (s *ContextualMetricsCollectorSpy) countContextualCall() {
	s.ctxMu.Lock()
	defer s.ctxMu.Unlock()

	s.contextualCalls++
}

var (
	_ bitemporal.MetricsCollector           = (*MetricsCollectorSpy)(nil)
	_ bitemporal.ContextualMetricsCollector = (*ContextualMetricsCollectorSpy)(nil)
)
