package boundary

import (
	"context"

	"github.com/itsneelabh/sdkguard/telemetry"
)

// OTelMetricsCollector implements MetricsCollector using OpenTelemetry
type OTelMetricsCollector struct {
	instruments *telemetry.MetricInstruments
	ctx         context.Context
}

// NewOTelMetricsCollector records on instruments, or on the global meter
// provider when instruments is nil.
func NewOTelMetricsCollector(instruments *telemetry.MetricInstruments) *OTelMetricsCollector {
	if instruments == nil {
		instruments = telemetry.NewMetricInstruments(nil)
	}
	return &OTelMetricsCollector{
		instruments: instruments,
		ctx:         context.Background(),
	}
}

func (o *OTelMetricsCollector) RecordCaptured(tag string) {
	o.instruments.Count(o.ctx, telemetry.MetricBoundaryCaptured, "tag", tag)
}

func (o *OTelMetricsCollector) RecordRethrown(tag string) {
	o.instruments.Count(o.ctx, telemetry.MetricBoundaryRethrown, "tag", tag)
}

func (o *OTelMetricsCollector) RecordReported(tag, exception string) {
	o.instruments.Count(o.ctx, telemetry.MetricBoundaryReported, "tag", tag, "exception", exception)
}

func (o *OTelMetricsCollector) RecordDeduplicated(tag, exception string) {
	o.instruments.Count(o.ctx, telemetry.MetricBoundaryDeduplicated, "tag", tag, "exception", exception)
}

func (o *OTelMetricsCollector) RecordReportFailed(tag string) {
	o.instruments.Count(o.ctx, telemetry.MetricBoundaryReportFailed, "tag", tag)
}
