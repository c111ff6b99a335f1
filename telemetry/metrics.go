package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrumentation scope used for every sdkguard meter and tracer.
const ScopeName = "github.com/itsneelabh/sdkguard"

// Metric names emitted by sdkguard components.
const (
	// Boundary metrics
	MetricBoundaryCaptured     = "sdkguard.boundary.captured"
	MetricBoundaryRethrown     = "sdkguard.boundary.rethrown"
	MetricBoundaryReported     = "sdkguard.boundary.reported"
	MetricBoundaryDeduplicated = "sdkguard.boundary.deduplicated"
	MetricBoundaryReportFailed = "sdkguard.boundary.report_failed"

	// Diagnostics metrics
	MetricMarkers        = "sdkguard.diagnostics.markers"
	MetricMarkerDuration = "sdkguard.diagnostics.marker.duration_ms"

	// Reporter metrics
	MetricReportDuration     = "sdkguard.reporter.request.duration_ms"
	MetricCircuitStateChange = "sdkguard.reporter.circuit_breaker.state_changes"
	MetricCircuitRejected    = "sdkguard.reporter.circuit_breaker.rejected"
)

// MetricInstruments holds cached metric instruments for efficient recording.
// Instruments are created on first use and reused afterwards.
type MetricInstruments struct {
	meter      metric.Meter
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
	limiter    *CardinalityLimiter
	mu         sync.RWMutex
}

// NewMetricInstruments creates an instrument cache on provider.
// A nil provider uses the global OpenTelemetry meter provider. Count and
// Duration cap label values with DefaultLabelLimits.
func NewMetricInstruments(provider metric.MeterProvider) *MetricInstruments {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	return &MetricInstruments{
		meter:      provider.Meter(ScopeName),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
		limiter:    NewCardinalityLimiter(DefaultLabelLimits),
	}
}

// SetLabelLimits replaces the label limits used by Count and Duration.
// nil disables limiting.
func (m *MetricInstruments) SetLabelLimits(limits map[string]int) {
	var limiter *CardinalityLimiter
	if limits != nil {
		limiter = NewCardinalityLimiter(limits)
	}
	m.mu.Lock()
	m.limiter = limiter
	m.mu.Unlock()
}

func (m *MetricInstruments) labels(name string, labels []string) []string {
	m.mu.RLock()
	limiter := m.limiter
	m.mu.RUnlock()
	return limiter.limit(name, labels)
}

// RecordCounter increments a counter metric
func (m *MetricInstruments) RecordCounter(ctx context.Context, name string, value int64, opts ...metric.AddOption) error {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		// Double-check after acquiring write lock
		if counter, exists = m.counters[name]; !exists {
			var err error
			counter, err = m.meter.Int64Counter(name)
			if err != nil {
				m.mu.Unlock()
				return fmt.Errorf("failed to create counter %s: %w", name, err)
			}
			m.counters[name] = counter
		}
		m.mu.Unlock()
	}

	counter.Add(ctx, value, opts...)
	return nil
}

// RecordHistogram records a value distribution (like latencies)
func (m *MetricInstruments) RecordHistogram(ctx context.Context, name string, value float64, opts ...metric.RecordOption) error {
	m.mu.RLock()
	histogram, exists := m.histograms[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		if histogram, exists = m.histograms[name]; !exists {
			var err error
			histogram, err = m.meter.Float64Histogram(name, metric.WithUnit("ms"))
			if err != nil {
				m.mu.Unlock()
				return fmt.Errorf("failed to create histogram %s: %w", name, err)
			}
			m.histograms[name] = histogram
		}
		m.mu.Unlock()
	}

	histogram.Record(ctx, value, opts...)
	return nil
}

// Count increments counter name by one with string label pairs.
// Recording errors are dropped; metrics never fail a caller.
func (m *MetricInstruments) Count(ctx context.Context, name string, labels ...string) {
	_ = m.RecordCounter(ctx, name, 1, metric.WithAttributes(Attributes(m.labels(name, labels)...)...))
}

// Duration records milliseconds on histogram name with string label pairs.
func (m *MetricInstruments) Duration(ctx context.Context, name string, milliseconds float64, labels ...string) {
	_ = m.RecordHistogram(ctx, name, milliseconds, metric.WithAttributes(Attributes(m.labels(name, labels)...)...))
}

// Attributes converts "k1", "v1", "k2", "v2" pairs into attributes.
// A trailing key without a value is ignored.
func Attributes(labels ...string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels)/2)
	for i := 0; i+1 < len(labels); i += 2 {
		attrs = append(attrs, attribute.String(labels[i], labels[i+1]))
	}
	return attrs
}
