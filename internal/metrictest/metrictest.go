// Package metrictest collects OpenTelemetry metrics in tests.
package metrictest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Reader pairs a manual reader with the meter provider it feeds.
type Reader struct {
	reader   *sdkmetric.ManualReader
	Provider *sdkmetric.MeterProvider
}

// New returns a Reader whose provider is shut down when t ends.
func New(t testing.TB) *Reader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return &Reader{reader: reader, Provider: provider}
}

// Collect reads everything recorded so far.
func (r *Reader) Collect(t testing.TB) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, r.reader.Collect(context.Background(), &rm))
	return rm
}

// Counter sums the int64 data points of name whose attributes contain every
// given key/value pair.
func (r *Reader) Counter(t testing.TB, name string, labels ...string) int64 {
	t.Helper()
	var total int64
	for _, m := range find(r.Collect(t), name) {
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.Truef(t, ok, "%s is not an int64 sum", name)
		for _, dp := range sum.DataPoints {
			if matches(dp.Attributes, labels) {
				total += dp.Value
			}
		}
	}
	return total
}

// HistogramCount counts the float64 observations of name matching labels.
func (r *Reader) HistogramCount(t testing.TB, name string, labels ...string) uint64 {
	t.Helper()
	var total uint64
	for _, m := range find(r.Collect(t), name) {
		hist, ok := m.Data.(metricdata.Histogram[float64])
		require.Truef(t, ok, "%s is not a float64 histogram", name)
		for _, dp := range hist.DataPoints {
			if matches(dp.Attributes, labels) {
				total += dp.Count
			}
		}
	}
	return total
}

func find(rm metricdata.ResourceMetrics, name string) []metricdata.Metrics {
	var out []metricdata.Metrics
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				out = append(out, m)
			}
		}
	}
	return out
}

func matches(set attribute.Set, labels []string) bool {
	for i := 0; i+1 < len(labels); i += 2 {
		v, ok := set.Value(attribute.Key(labels[i]))
		if !ok || v.AsString() != labels[i+1] {
			return false
		}
	}
	return true
}
