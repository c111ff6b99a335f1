package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/itsneelabh/sdkguard/core"
	"github.com/itsneelabh/sdkguard/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Request headers of the exception endpoint.
const (
	HeaderAPIKey     = "STATSIG-API-KEY"
	HeaderSDKType    = "STATSIG-SDK-TYPE"
	HeaderSDKVersion = "STATSIG-SDK-VERSION"
)

// HTTPReporter POSTs reports to the diagnostics endpoint. It never retries.
type HTTPReporter struct {
	sdkKey      string
	endpoint    string
	client      *http.Client
	timeout     time.Duration
	breaker     *CircuitBreaker
	logger      core.Logger
	tracer      trace.Tracer
	instruments *telemetry.MetricInstruments
}

// Option configures an HTTPReporter.
type Option func(*HTTPReporter)

// WithEndpoint overrides core.DefaultEndpoint.
func WithEndpoint(endpoint string) Option {
	return func(r *HTTPReporter) {
		if endpoint != "" {
			r.endpoint = endpoint
		}
	}
}

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(client *http.Client) Option {
	return func(r *HTTPReporter) { r.client = client }
}

// WithTimeout bounds a single POST. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(r *HTTPReporter) { r.timeout = timeout }
}

// WithCircuitBreaker guards delivery with cb.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(r *HTTPReporter) { r.breaker = cb }
}

// WithLogger sets the reporter logger.
func WithLogger(logger core.Logger) Option {
	return func(r *HTTPReporter) { r.logger = core.ComponentLogger(logger, "sdkguard/reporter") }
}

// WithInstruments records request durations and breaker activity.
func WithInstruments(m *telemetry.MetricInstruments) Option {
	return func(r *HTTPReporter) { r.instruments = m }
}

// WithTracerProvider sets where report spans go. Default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *HTTPReporter) { r.tracer = tp.Tracer(telemetry.ScopeName) }
}

// NewHTTPReporter creates a reporter authenticating with sdkKey.
func NewHTTPReporter(sdkKey string, opts ...Option) *HTTPReporter {
	r := &HTTPReporter{
		sdkKey:   sdkKey,
		endpoint: core.DefaultEndpoint,
		logger:   &core.NoOpLogger{},
		tracer:   otel.Tracer(telemetry.ScopeName),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   r.timeout,
		}
	}
	if r.instruments != nil {
		r.breaker.SetInstruments(r.instruments)
	}
	return r
}

// NewHTTPReporterFromConfig wires endpoint, timeout and circuit breaker from cfg.
func NewHTTPReporterFromConfig(cfg *core.Config, logger core.Logger, opts ...Option) *HTTPReporter {
	base := []Option{
		WithEndpoint(cfg.Reporter.Endpoint),
		WithTimeout(cfg.Reporter.Timeout),
		WithLogger(logger),
		WithCircuitBreaker(NewCircuitBreakerFromConfig(cfg.Reporter.CircuitBreaker, logger)),
	}
	return NewHTTPReporter(cfg.SDKKey, append(base, opts...)...)
}

// Endpoint returns the URL reports are sent to.
func (r *HTTPReporter) Endpoint() string { return r.endpoint }

// CircuitBreaker returns the breaker guarding delivery, or nil.
func (r *HTTPReporter) CircuitBreaker() *CircuitBreaker { return r.breaker }

// Report sends report once. The error is informational; callers only log it.
func (r *HTTPReporter) Report(ctx context.Context, report *Report) error {
	if !r.breaker.Allow() {
		return core.NewSDKError("HTTPReporter.Report", "reporter", core.ErrCircuitOpen)
	}

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	ctx, span := r.tracer.Start(ctx, "sdkguard.report", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("sdkguard.tag", report.Tag),
			attribute.String("sdkguard.exception", report.Exception),
		))
	defer span.End()

	start := time.Now()
	status, err := r.post(ctx, report, body)
	r.recordDuration(ctx, start, status)

	if err != nil {
		r.breaker.RecordFailure()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	r.breaker.RecordSuccess()
	span.SetAttributes(attribute.Int("http.status_code", status))
	return nil
}

func (r *HTTPReporter) post(ctx context.Context, report *Report, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create report request: %w", err)
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", core.UserAgent)
	req.Header.Set(HeaderAPIKey, r.sdkKey)
	if v, ok := metadataString(report.StatsigMetadata, MetadataSDKType); ok {
		req.Header.Set(HeaderSDKType, v)
	}
	if v, ok := metadataString(report.StatsigMetadata, MetadataSDKVersion); ok {
		req.Header.Set(HeaderSDKVersion, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send report: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &core.SDKError{
			Op:      "HTTPReporter.Report",
			Kind:    "reporter",
			Message: fmt.Sprintf("exception report rejected with status %d", resp.StatusCode),
			Err:     core.ErrReportRejected,
		}
	}
	return resp.StatusCode, nil
}

func (r *HTTPReporter) recordDuration(ctx context.Context, start time.Time, status int) {
	if r.instruments == nil {
		return
	}
	outcome := "error"
	if status != 0 {
		outcome = fmt.Sprintf("%dxx", status/100)
	}
	r.instruments.Duration(ctx, telemetry.MetricReportDuration,
		float64(time.Since(start))/float64(time.Millisecond), "status", outcome)
}
