package testdoubles

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal"
)

// SpySpanContext is the bitemporal.SpanContext handed out by TracingCollectorSpy.
type SpySpanContext struct {
	status     string
	attributes map[string]string
	mu         sync.Mutex
}

func (c *SpySpanContext) SetStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = status
}

func (c *SpySpanContext) AddAttribute(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attributes == nil {
		c.attributes = make(map[string]string)
	}

	c.attributes[key] = value
}

func (c *SpySpanContext) GetStatus() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

// GetAttributes returns a copy of the attributes added while the span was open.
func (c *SpySpanContext) GetAttributes() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return maps.Clone(c.attributes)
}

// SpySpanRecord is one span as the engine started and finished it.
// Status and EndAttributes stay empty while the span is open.
type SpySpanRecord struct {
	Name            string
	StartAttributes map[string]string
	Status          string
	EndAttributes   map[string]string
	SpanContext     *SpySpanContext
}

// TracingCollectorSpy captures spans in start order.
type TracingCollectorSpy struct {
	spanRecords []SpySpanRecord
	mu          sync.Mutex
	recordCalls bool
}

func NewTracingCollectorSpy(recordCalls bool) *TracingCollectorSpy {
	return &TracingCollectorSpy{recordCalls: recordCalls}
}

func (s *TracingCollectorSpy) StartSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, bitemporal.SpanContext) {

	if !s.recordCalls {
		return ctx, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	spanCtx := &SpySpanContext{}
	s.spanRecords = append(s.spanRecords, SpySpanRecord{
		Name:            name,
		StartAttributes: maps.Clone(attrs),
		SpanContext:     spanCtx,
	})

	return ctx, spanCtx
}

func (s *TracingCollectorSpy) FinishSpan(spanCtx bitemporal.SpanContext, status string, attrs map[string]string) {
	spyCtx, ok := spanCtx.(*SpySpanContext)
	if !s.recordCalls || !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.spanRecords, func(record SpySpanRecord) bool { return record.SpanContext == spyCtx })
	if i < 0 {
		return
	}

	s.spanRecords[i].Status = status
	s.spanRecords[i].EndAttributes = maps.Clone(attrs)
}

func (s *TracingCollectorSpy) GetSpanRecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.spanRecords)
}

// GetSpanRecords returns a copy of all captured span records.
func (s *TracingCollectorSpy) GetSpanRecords() []SpySpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.spanRecords)
}

func (s *TracingCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.spanRecords = nil
}

// CountSpanRecordsForName counts the spans started with name.
func (s *TracingCollectorSpy) CountSpanRecordsForName(name string) int {
	count := 0
	for _, record := range s.GetSpanRecords() {
		if record.Name == name {
			count++
		}
	}

	return count
}

// SpanRecordMatcher collects conditions on a span; Assert holds if any span with the name meets all of them.
type SpanRecordMatcher struct {
	collector  *TracingCollectorSpy
	name       string
	conditions []func(SpySpanRecord) bool
}

// HasSpanRecordForName starts a fluent chain of conditions on the spans named name.
func (s *TracingCollectorSpy) HasSpanRecordForName(name string) *SpanRecordMatcher {
	return &SpanRecordMatcher{collector: s, name: name}
}

func (m *SpanRecordMatcher) with(condition func(SpySpanRecord) bool) *SpanRecordMatcher {
	m.conditions = append(m.conditions, condition)
	return m
}

func (m *SpanRecordMatcher) WithStatus(status string) *SpanRecordMatcher {
	return m.with(func(record SpySpanRecord) bool { return record.Status == status })
}

func (m *SpanRecordMatcher) WithStartAttribute(key, value string) *SpanRecordMatcher {
	return m.with(func(record SpySpanRecord) bool { return hasAttribute(record.StartAttributes, key, value) })
}

func (m *SpanRecordMatcher) WithEndAttribute(key, value string) *SpanRecordMatcher {
	return m.with(func(record SpySpanRecord) bool { return hasAttribute(record.EndAttributes, key, value) })
}

// WithEndAttributeKey requires the end attribute key, whatever its value.
func (m *SpanRecordMatcher) WithEndAttributeKey(key string) *SpanRecordMatcher {
	return m.with(func(record SpySpanRecord) bool {
		_, exists := record.EndAttributes[key]
		return exists
	})
}

// WithSpanAttribute requires an attribute added through the span context while the span was open.
func (m *SpanRecordMatcher) WithSpanAttribute(key, value string) *SpanRecordMatcher {
	return m.with(func(record SpySpanRecord) bool {
		return record.SpanContext != nil && hasAttribute(record.SpanContext.GetAttributes(), key, value)
	})
}

func (m *SpanRecordMatcher) Assert() bool {
	return slices.ContainsFunc(m.collector.GetSpanRecords(), func(record SpySpanRecord) bool {
		if record.Name != m.name {
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

func hasAttribute(attrs map[string]string, key, value string) bool {
	actual, exists := attrs[key]
	return exists && actual == value
}

var (
	_ bitemporal.TracingCollector = (*TracingCollectorSpy)(nil)
	_ bitemporal.SpanContext      = (*SpySpanContext)(nil)
)
