package boundary

import (
	"sync"

	"github.com/itsneelabh/sdkguard/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetricsCollector exposes boundary counters to a Prometheus registry.
type PrometheusMetricsCollector struct {
	captured     *prometheus.CounterVec
	rethrown     *prometheus.CounterVec
	reported     *prometheus.CounterVec
	deduplicated *prometheus.CounterVec
	reportFailed *prometheus.CounterVec
	limiter      *telemetry.CardinalityLimiter
}

var (
	defaultPrometheusOnce      sync.Once
	defaultPrometheusCollector *PrometheusMetricsCollector
)

// DefaultPrometheusMetricsCollector returns the collector registered on
// prometheus.DefaultRegisterer. Every boundary of the process shares it.
func DefaultPrometheusMetricsCollector() *PrometheusMetricsCollector {
	defaultPrometheusOnce.Do(func() {
		defaultPrometheusCollector = NewPrometheusMetricsCollector(prometheus.DefaultRegisterer)
	})
	return defaultPrometheusCollector
}

// NewPrometheusMetricsCollector registers the boundary counters on reg.
// Registering twice on the same registry panics. The tag and exception
// labels are capped by telemetry.DefaultLabelLimits.
func NewPrometheusMetricsCollector(reg prometheus.Registerer) *PrometheusMetricsCollector {
	factory := promauto.With(reg)
	return &PrometheusMetricsCollector{
		captured: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdkguard",
			Subsystem: "boundary",
			Name:      "captured_total",
			Help:      "Unexpected failures recovered by the error boundary.",
		}, []string{"tag"}),
		rethrown: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdkguard",
			Subsystem: "boundary",
			Name:      "rethrown_total",
			Help:      "Usage errors passed back to the caller.",
		}, []string{"tag"}),
		reported: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdkguard",
			Subsystem: "boundary",
			Name:      "reported_total",
			Help:      "Exception reports delivered to the diagnostics endpoint.",
		}, []string{"tag", "exception"}),
		deduplicated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdkguard",
			Subsystem: "boundary",
			Name:      "deduplicated_total",
			Help:      "Exception reports skipped because the name was already reported.",
		}, []string{"tag", "exception"}),
		reportFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdkguard",
			Subsystem: "boundary",
			Name:      "report_failed_total",
			Help:      "Exception reports that could not be delivered.",
		}, []string{"tag"}),
		limiter: telemetry.NewCardinalityLimiter(telemetry.DefaultLabelLimits),
	}
}

func (p *PrometheusMetricsCollector) label(metric, label, value string) string {
	return p.limiter.CheckAndLimit(metric, label, value)
}

func (p *PrometheusMetricsCollector) RecordCaptured(tag string) {
	p.captured.WithLabelValues(p.label("captured", "tag", tag)).Inc()
}

func (p *PrometheusMetricsCollector) RecordRethrown(tag string) {
	p.rethrown.WithLabelValues(p.label("rethrown", "tag", tag)).Inc()
}

func (p *PrometheusMetricsCollector) RecordReported(tag, exception string) {
	p.reported.WithLabelValues(p.label("reported", "tag", tag), p.label("reported", "exception", exception)).Inc()
}

func (p *PrometheusMetricsCollector) RecordDeduplicated(tag, exception string) {
	p.deduplicated.WithLabelValues(p.label("deduplicated", "tag", tag), p.label("deduplicated", "exception", exception)).Inc()
}

func (p *PrometheusMetricsCollector) RecordReportFailed(tag string) {
	p.reportFailed.WithLabelValues(p.label("report_failed", "tag", tag)).Inc()
}
