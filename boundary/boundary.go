package boundary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"runtime/debug"
	"sync"

	"github.com/itsneelabh/sdkguard/core"
	"github.com/itsneelabh/sdkguard/dedup"
	"github.com/itsneelabh/sdkguard/diagnostics"
	"github.com/itsneelabh/sdkguard/reporter"
	"github.com/itsneelabh/sdkguard/telemetry"
)

// Boundary guards SDK entry points. Create one per SDK client.
type Boundary struct {
	sdkKey string

	mu       sync.RWMutex
	metadata map[string]any

	seen     dedup.SeenSet
	store    *diagnostics.Store
	reporter reporter.Reporter
	logger   core.Logger
	metrics  MetricsCollector

	sampler     func(n int) int
	sampleRange int
	maxMarkers  int
	category    string
	sampled     bool

	inflight inflight
	closers  []io.Closer
}

// Option configures a Boundary.
type Option func(*Boundary)

// WithReporter replaces the default HTTP reporter.
func WithReporter(r reporter.Reporter) Option {
	return func(b *Boundary) { b.reporter = r }
}

// WithSeenSet replaces the per-boundary memory set, e.g. with a
// dedup.RedisSeenSet.
func WithSeenSet(s dedup.SeenSet) Option {
	return func(b *Boundary) { b.seen = s }
}

// WithLogger sets the logger used for the local failure line and for
// reporting diagnostics.
func WithLogger(logger core.Logger) Option {
	return func(b *Boundary) { b.logger = core.ComponentLogger(logger, "sdkguard/boundary") }
}

// WithDiagnostics uses store instead of diagnostics.Default().
func WithDiagnostics(store *diagnostics.Store) Option {
	return func(b *Boundary) { b.store = store }
}

// WithSampler replaces the random draw deciding whether markers are enabled.
// sampler receives the sample range and markers are on when it returns 0.
// nil restores the uniform random draw.
func WithSampler(sampler func(n int) int) Option {
	return func(b *Boundary) { b.sampler = sampler }
}

// WithSampleRange sets the range of the sampling draw. Values below 1 are
// treated as 1, which always samples.
func WithSampleRange(n int) Option {
	return func(b *Boundary) { b.sampleRange = n }
}

// WithMaxMarkers sets the marker budget of a sampled process.
func WithMaxMarkers(n int) Option {
	return func(b *Boundary) { b.maxMarkers = n }
}

// WithMarkerCategory overrides core.DefaultMarkerCategory.
func WithMarkerCategory(category string) Option {
	return func(b *Boundary) {
		if category != "" {
			b.category = category
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(b *Boundary) { b.metrics = m }
}

// New creates a boundary reporting with sdkKey.
//
// Construction draws the sampling decision once and applies it to the marker
// store: a zero draw gives the marker category its budget, anything else sets
// the budget to zero.
func New(sdkKey string, opts ...Option) *Boundary {
	b := &Boundary{
		sdkKey:      sdkKey,
		sampler:     rand.IntN,
		sampleRange: core.DefaultSampleRange,
		maxMarkers:  core.DefaultMaxMarkers,
		category:    core.DefaultMarkerCategory,
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = core.ComponentLogger(core.NewProductionLogger(
			core.LoggingConfig{Level: "info", Format: "json", Output: "stderr"},
			core.DevelopmentConfig{},
			core.DefaultServiceName,
		), "sdkguard/boundary")
	}
	if b.seen == nil {
		b.seen = dedup.NewMemorySeenSet()
	}
	if b.store == nil {
		b.store = diagnostics.Default()
	}
	if b.reporter == nil {
		b.reporter = reporter.NewHTTPReporter(sdkKey, reporter.WithLogger(b.logger))
	}
	if b.metrics == nil {
		b.metrics = noopMetrics{}
	}
	if b.sampler == nil {
		b.sampler = rand.IntN
	}
	if b.sampleRange < 1 {
		b.sampleRange = 1
	}

	budget := 0
	if b.sampler(b.sampleRange) == 0 {
		b.sampled = true
		budget = b.maxMarkers
	}
	b.store.SetMaxMarkers(b.category, budget)

	return b
}

// NewFromConfig wires logger, reporter, dedup backend, sampling and metrics
// from cfg. opts are applied after the config and win.
//
// An unreachable Redis does not fail construction: the boundary logs a
// warning and deduplicates in memory.
func NewFromConfig(ctx context.Context, cfg *core.Config, opts ...Option) (*Boundary, error) {
	if cfg == nil {
		return nil, core.NewInvalidArgumentError("boundary.NewFromConfig", "cfg", "must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := core.NewProductionLogger(cfg.Logging, cfg.Development, cfg.Telemetry.ServiceName)

	var instruments *telemetry.MetricInstruments
	var reporterOpts []reporter.Option
	base := []Option{
		WithLogger(logger),
		WithSampleRange(cfg.Boundary.SampleRange),
		WithMaxMarkers(cfg.Boundary.MaxMarkers),
		WithMarkerCategory(cfg.Boundary.MarkerCategory),
	}

	var collectors []MetricsCollector
	if cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled {
		instruments = telemetry.NewMetricInstruments(nil)
		reporterOpts = append(reporterOpts, reporter.WithInstruments(instruments))
		collectors = append(collectors, NewOTelMetricsCollector(instruments))
	}
	if cfg.Telemetry.Prometheus {
		collectors = append(collectors, DefaultPrometheusMetricsCollector())
	}
	if len(collectors) > 0 {
		base = append(base, WithMetrics(MultiMetricsCollector(collectors...)))
	}
	base = append(base, WithReporter(reporter.NewHTTPReporterFromConfig(cfg, logger, reporterOpts...)))

	var closers []io.Closer
	if cfg.Dedup.Provider == "redis" {
		client, err := dedup.NewRedisClient(ctx, cfg.Dedup.RedisURL)
		switch {
		case errors.Is(err, core.ErrInvalidConfiguration):
			return nil, err
		case err != nil:
			logger.Warn("Redis dedup unavailable, deduplicating in memory", map[string]interface{}{
				"error": err.Error(),
			})
		default:
			seen := dedup.NewRedisSeenSet(client,
				dedup.WithPrefix(cfg.Dedup.Prefix),
				dedup.WithNamespace(cfg.Dedup.Namespace),
				dedup.WithLogger(logger),
			)
			closers = append(closers, seen)
			base = append(base, WithSeenSet(seen))
		}
	}

	b := New(cfg.SDKKey, append(base, opts...)...)
	b.closers = closers
	if instruments != nil {
		b.store.SetInstruments(instruments)
	}
	return b, nil
}

// SetMetadata replaces the metadata sent with every report.
func (b *Boundary) SetMetadata(metadata map[string]any) {
	cp := make(map[string]any, len(metadata))
	for k, v := range metadata {
		cp[k] = v
	}
	b.mu.Lock()
	b.metadata = cp
	b.mu.Unlock()
}

// Metadata returns a copy of the report metadata, nil until SetMetadata.
func (b *Boundary) Metadata() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.metadata == nil {
		return nil
	}
	cp := make(map[string]any, len(b.metadata))
	for k, v := range b.metadata {
		cp[k] = v
	}
	return cp
}

// Sampled reports whether this boundary enabled markers.
func (b *Boundary) Sampled() bool { return b.sampled }

// Diagnostics returns the marker store the boundary writes to.
func (b *Boundary) Diagnostics() *diagnostics.Store { return b.store }

// LogError reports failure under tag in the background. extra may be nil.
// It never blocks on the network and never fails.
func (b *Boundary) LogError(tag string, failure any, extra ExtraDataFunc) {
	b.dispatch(tag, failure, debug.Stack(), extra)
}

func (b *Boundary) dispatch(tag string, failure any, stack []byte, extra ExtraDataFunc) {
	b.inflight.add()
	go func() {
		defer b.inflight.done()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Debug("Exception report dropped", map[string]interface{}{
					"tag":   tag,
					"panic": fmt.Sprintf("%v", r),
				})
			}
		}()
		b.report(context.Background(), tag, failure, stack, extra)
	}()
}

func (b *Boundary) report(ctx context.Context, tag string, failure any, stack []byte, extra ExtraDataFunc) {
	var extraData map[string]any
	if extra != nil {
		data, err := extra(ctx)
		if err != nil {
			b.logger.Debug("Exception report dropped: extra data failed", map[string]interface{}{
				"tag":   tag,
				"error": err.Error(),
			})
			return
		}
		extraData = data
	}

	name, info := describe(failure, stack)

	first, err := b.seen.MarkSeen(ctx, name)
	if err != nil {
		b.logger.Debug("Seen set degraded", map[string]interface{}{
			"exception": name,
			"error":     err.Error(),
		})
	}
	if !first {
		b.metrics.RecordDeduplicated(tag, name)
		return
	}

	rep := reporter.NewReport(tag, name, info, b.Metadata(), extraData)
	if err := b.reporter.Report(ctx, rep); err != nil {
		b.metrics.RecordReportFailed(tag)
		b.logger.Debug("Exception report failed", map[string]interface{}{
			"tag":       tag,
			"exception": name,
			"error":     err.Error(),
		})
		return
	}
	b.metrics.RecordReported(tag, name)
}

// Flush waits for in-flight reports.
func (b *Boundary) Flush(ctx context.Context) error {
	select {
	case <-b.inflight.drained():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes and releases the resources NewFromConfig opened.
func (b *Boundary) Close(ctx context.Context) error {
	err := b.Flush(ctx)
	for _, c := range b.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (b *Boundary) beginMarker(tag string) string {
	handle := b.store.Mark(b.category, tag)
	if handle == nil {
		return ""
	}
	id := fmt.Sprintf("%s_%d", tag, b.store.MarkerCount(b.category))
	if !handle.Start(diagnostics.Fields{MarkerID: id}) {
		return ""
	}
	return id
}

func (b *Boundary) endMarker(tag string, success bool, id string) {
	if id == "" {
		return
	}
	b.store.Mark(b.category, tag).End(diagnostics.Fields{MarkerID: id, Success: success})
}
