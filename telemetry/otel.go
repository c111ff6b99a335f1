package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/itsneelabh/sdkguard/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// DefaultExportInterval is how often metrics are pushed to the collector.
const DefaultExportInterval = 30 * time.Second

// Provider owns the OpenTelemetry trace and meter providers used by sdkguard.
// A Provider built from a disabled config installs nothing and hands out the
// global (no-op by default) providers.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	instruments    *MetricInstruments
	logger         core.Logger
}

// ProviderOption customizes NewProvider.
type ProviderOption func(*providerOptions)

type providerOptions struct {
	logger       core.Logger
	stdout       io.Writer
	metricReader sdkmetric.Reader
	setGlobal    bool
}

// WithProviderLogger sets the logger used for lifecycle messages.
func WithProviderLogger(logger core.Logger) ProviderOption {
	return func(o *providerOptions) { o.logger = logger }
}

// WithStdoutWriter redirects the stdout trace exporter.
func WithStdoutWriter(w io.Writer) ProviderOption {
	return func(o *providerOptions) { o.stdout = w }
}

// WithMetricReader replaces the periodic OTLP reader, e.g. with a
// sdkmetric.ManualReader in tests.
func WithMetricReader(r sdkmetric.Reader) ProviderOption {
	return func(o *providerOptions) { o.metricReader = r }
}

// WithoutGlobal keeps the providers out of the otel globals.
func WithoutGlobal() ProviderOption {
	return func(o *providerOptions) { o.setGlobal = false }
}

// NewProvider builds trace and metric pipelines from cfg.
//
// Exporter "otlp" sends spans over gRPC and metrics over HTTP to cfg.Endpoint
// (cfg.MetricsEndpoint for metrics when set). Exporter "stdout" prints spans
// and keeps metrics in-process unless a reader is supplied.
func NewProvider(ctx context.Context, cfg core.TelemetryConfig, opts ...ProviderOption) (*Provider, error) {
	o := providerOptions{stdout: os.Stdout, setGlobal: true}
	for _, opt := range opts {
		opt(&o)
	}
	logger := core.ComponentLogger(o.logger, "sdkguard/telemetry")

	p := &Provider{logger: logger}
	if !cfg.Enabled {
		p.instruments = NewMetricInstruments(nil)
		return p, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = core.DefaultServiceName
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", core.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if cfg.TracingEnabled {
		exporter, err := newTraceExporter(ctx, cfg, o.stdout)
		if err != nil {
			return nil, err
		}
		p.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
	}

	if cfg.MetricsEnabled {
		reader := o.metricReader
		if reader == nil && cfg.Exporter == "otlp" {
			exporter, err := newMetricExporter(ctx, cfg)
			if err != nil {
				_ = p.Shutdown(ctx)
				return nil, err
			}
			reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(DefaultExportInterval))
		}
		if reader != nil {
			p.meterProvider = sdkmetric.NewMeterProvider(
				sdkmetric.WithReader(reader),
				sdkmetric.WithResource(res),
			)
		}
	}

	if o.setGlobal {
		if p.tracerProvider != nil {
			otel.SetTracerProvider(p.tracerProvider)
			otel.SetTextMapPropagator(propagation.TraceContext{})
		}
		if p.meterProvider != nil {
			otel.SetMeterProvider(p.meterProvider)
		}
	}

	p.instruments = NewMetricInstruments(p.MeterProvider())

	logger.Info("Telemetry enabled", map[string]interface{}{
		"exporter": cfg.Exporter,
		"endpoint": cfg.Endpoint,
		"service":  serviceName,
		"tracing":  p.tracerProvider != nil,
		"metrics":  p.meterProvider != nil,
	})

	return p, nil
}

func newTraceExporter(ctx context.Context, cfg core.TelemetryConfig, stdout io.Writer) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(stdout))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exporter, nil
	case "otlp":
		opts := []otlptracegrpc.Option{}
		if strings.Contains(cfg.Endpoint, "://") {
			opts = append(opts, otlptracegrpc.WithEndpointURL(cfg.Endpoint))
		} else {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("unknown telemetry exporter %q: %w", cfg.Exporter, core.ErrInvalidConfiguration)
	}
}

func newMetricExporter(ctx context.Context, cfg core.TelemetryConfig) (sdkmetric.Exporter, error) {
	endpoint := cfg.MetricsEndpoint
	if endpoint == "" {
		endpoint = cfg.Endpoint
	}
	opts := []otlpmetrichttp.Option{}
	if strings.Contains(endpoint, "://") {
		opts = append(opts, otlpmetrichttp.WithEndpointURL(endpoint))
	} else {
		opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}
	return exporter, nil
}

// Instruments returns the metric instrument cache bound to this provider.
func (p *Provider) Instruments() *MetricInstruments {
	return p.instruments
}

// MeterProvider returns the SDK meter provider, or the global one when
// metrics are not exported.
func (p *Provider) MeterProvider() metric.MeterProvider {
	if p.meterProvider != nil {
		return p.meterProvider
	}
	return otel.GetMeterProvider()
}

// TracerProvider returns the SDK tracer provider, or the global one when
// tracing is off.
func (p *Provider) TracerProvider() trace.TracerProvider {
	if p.tracerProvider != nil {
		return p.tracerProvider
	}
	return otel.GetTracerProvider()
}

// Shutdown flushes and stops both pipelines.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	if len(errs) > 0 {
		p.logger.Warn("Telemetry shutdown incomplete", map[string]interface{}{
			"errors": len(errs),
		})
	}
	return errors.Join(errs...)
}
