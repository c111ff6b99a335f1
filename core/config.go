package core

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values shared by the config layer and the components it wires.
const (
	DefaultEndpoint       = "https://statsigapi.net/v1/sdk_exception"
	DefaultSampleRange    = 10000
	DefaultMaxMarkers     = 30
	DefaultMarkerCategory = "error_boundary"
	DefaultDedupPrefix    = "sdkguard:seen:"
	DefaultServiceName    = "sdkguard"
)

// Config holds all configuration options for sdkguard.
// It supports layered configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables
//  3. Config file (via WithConfigFile)
//  4. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithSDKKey("client-xyz"),
//	    WithRedisDedup("redis://localhost:6379"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	// SDKKey is the credential sent with every exception report
	SDKKey string `json:"sdk_key" yaml:"sdk_key" env:"SDKGUARD_SDK_KEY"`

	// Boundary sampling and marker configuration
	Boundary BoundaryConfig `json:"boundary" yaml:"boundary"`

	// Reporter transport configuration
	Reporter ReporterConfig `json:"reporter" yaml:"reporter"`

	// Dedup backend configuration
	Dedup DedupConfig `json:"dedup" yaml:"dedup"`

	// Telemetry configuration (optional module)
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Development configuration
	Development DevelopmentConfig `json:"development" yaml:"development"`
}

// BoundaryConfig controls the sampled instrumentation of guarded calls.
// A process enables markers when a uniform draw in [0, SampleRange) is zero,
// so SampleRange=1 always samples and the default samples 1 in 10000.
type BoundaryConfig struct {
	SampleRange    int    `json:"sample_range" yaml:"sample_range" env:"SDKGUARD_SAMPLE_RANGE" default:"10000"`
	MaxMarkers     int    `json:"max_markers" yaml:"max_markers" env:"SDKGUARD_MAX_MARKERS" default:"30"`
	MarkerCategory string `json:"marker_category" yaml:"marker_category" default:"error_boundary"`
}

// ReporterConfig configures the exception report transport.
// Timeout applies to a single POST; zero means the http.Client default (none).
type ReporterConfig struct {
	Endpoint       string               `json:"endpoint" yaml:"endpoint" env:"SDKGUARD_REPORT_ENDPOINT" default:"https://statsigapi.net/v1/sdk_exception"`
	Timeout        time.Duration        `json:"timeout" yaml:"timeout" env:"SDKGUARD_REPORT_TIMEOUT" default:"10s"`
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
}

// CircuitBreakerConfig stops report delivery after MaxFailures consecutive
// failures and probes again once RecoveryTime has elapsed.
type CircuitBreakerConfig struct {
	Enabled      bool          `json:"enabled" yaml:"enabled" env:"SDKGUARD_REPORT_CB_ENABLED" default:"true"`
	MaxFailures  int           `json:"max_failures" yaml:"max_failures" env:"SDKGUARD_REPORT_CB_MAX_FAILURES" default:"5"`
	RecoveryTime time.Duration `json:"recovery_time" yaml:"recovery_time" env:"SDKGUARD_REPORT_CB_RECOVERY" default:"1m"`
}

// DedupConfig selects where reported error names are remembered.
// "memory" scopes dedup to one boundary instance; "redis" shares it between
// every process that uses the same Prefix and Namespace.
type DedupConfig struct {
	Provider  string `json:"provider" yaml:"provider" env:"SDKGUARD_DEDUP_PROVIDER" default:"memory"`
	RedisURL  string `json:"redis_url" yaml:"redis_url" env:"SDKGUARD_REDIS_URL,REDIS_URL"`
	Prefix    string `json:"prefix" yaml:"prefix" env:"SDKGUARD_DEDUP_PREFIX" default:"sdkguard:seen:"`
	Namespace string `json:"namespace" yaml:"namespace" env:"SDKGUARD_DEDUP_NAMESPACE"`
}

// TelemetryConfig contains OpenTelemetry configuration.
// Exporter "otlp" sends traces over gRPC and metrics over HTTP to Endpoint;
// "stdout" prints traces locally and disables metric export.
// Prometheus registers the boundary counters on the default Prometheus
// registry and does not depend on Enabled.
type TelemetryConfig struct {
	Enabled         bool   `json:"enabled" yaml:"enabled" env:"SDKGUARD_TELEMETRY_ENABLED" default:"false"`
	Exporter        string `json:"exporter" yaml:"exporter" env:"SDKGUARD_TELEMETRY_EXPORTER" default:"otlp"`
	Endpoint        string `json:"endpoint" yaml:"endpoint" env:"SDKGUARD_TELEMETRY_ENDPOINT,OTEL_EXPORTER_OTLP_ENDPOINT"`
	MetricsEndpoint string `json:"metrics_endpoint" yaml:"metrics_endpoint" env:"SDKGUARD_TELEMETRY_METRICS_ENDPOINT"`
	ServiceName     string `json:"service_name" yaml:"service_name" env:"SDKGUARD_SERVICE_NAME,OTEL_SERVICE_NAME"`
	MetricsEnabled  bool   `json:"metrics_enabled" yaml:"metrics_enabled" env:"SDKGUARD_TELEMETRY_METRICS" default:"true"`
	TracingEnabled  bool   `json:"tracing_enabled" yaml:"tracing_enabled" env:"SDKGUARD_TELEMETRY_TRACING" default:"true"`
	Insecure        bool   `json:"insecure" yaml:"insecure" env:"SDKGUARD_TELEMETRY_INSECURE" default:"true"`
	Prometheus      bool   `json:"prometheus" yaml:"prometheus" env:"SDKGUARD_PROMETHEUS" default:"false"`
}

// LoggingConfig contains logging configuration.
// Supports structured (JSON) and human-readable (text) formats.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" env:"SDKGUARD_LOG_LEVEL" default:"info"`
	Format     string `json:"format" yaml:"format" env:"SDKGUARD_LOG_FORMAT" default:"json"`
	Output     string `json:"output" yaml:"output" env:"SDKGUARD_LOG_OUTPUT" default:"stderr"`
	TimeFormat string `json:"time_format" yaml:"time_format" env:"SDKGUARD_LOG_TIME_FORMAT"`
}

// DevelopmentConfig contains settings for local development and testing.
type DevelopmentConfig struct {
	Enabled      bool `json:"enabled" yaml:"enabled" env:"SDKGUARD_DEV_MODE" default:"false"`
	DebugLogging bool `json:"debug_logging" yaml:"debug_logging" env:"SDKGUARD_DEBUG" default:"false"`
	PrettyLogs   bool `json:"pretty_logs" yaml:"pretty_logs" env:"SDKGUARD_PRETTY_LOGS" default:"false"`
}

// Option is a functional option for configuring sdkguard.
// Options are applied in order and can return an error if the configuration is invalid.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Boundary: BoundaryConfig{
			SampleRange:    DefaultSampleRange,
			MaxMarkers:     DefaultMaxMarkers,
			MarkerCategory: DefaultMarkerCategory,
		},
		Reporter: ReporterConfig{
			Endpoint: DefaultEndpoint,
			Timeout:  10 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:      true,
				MaxFailures:  5,
				RecoveryTime: time.Minute,
			},
		},
		Dedup: DedupConfig{
			Provider: "memory",
			Prefix:   DefaultDedupPrefix,
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			Exporter:       "otlp",
			ServiceName:    DefaultServiceName,
			MetricsEnabled: true,
			TracingEnabled: true,
			Insecure:       true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables take precedence over defaults but are overridden by
// files and functional options.
//
// Variable naming convention:
//   - sdkguard-specific: SDKGUARD_<SETTING>
//   - Standard variables: REDIS_URL, OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_SERVICE_NAME
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("SDKGUARD_SDK_KEY"); v != "" {
		c.SDKKey = v
	}

	// Boundary settings
	if v := os.Getenv("SDKGUARD_SAMPLE_RANGE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SDKGUARD_SAMPLE_RANGE=%q: %w", v, ErrInvalidConfiguration)
		}
		c.Boundary.SampleRange = n
	}
	if v := os.Getenv("SDKGUARD_MAX_MARKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SDKGUARD_MAX_MARKERS=%q: %w", v, ErrInvalidConfiguration)
		}
		c.Boundary.MaxMarkers = n
	}

	// Reporter settings
	if v := os.Getenv("SDKGUARD_REPORT_ENDPOINT"); v != "" {
		c.Reporter.Endpoint = v
	}
	if v := os.Getenv("SDKGUARD_REPORT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SDKGUARD_REPORT_TIMEOUT=%q: %w", v, ErrInvalidConfiguration)
		}
		c.Reporter.Timeout = d
	}
	if v := os.Getenv("SDKGUARD_REPORT_CB_ENABLED"); v != "" {
		c.Reporter.CircuitBreaker.Enabled = parseBool(v)
	}
	if v := os.Getenv("SDKGUARD_REPORT_CB_MAX_FAILURES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SDKGUARD_REPORT_CB_MAX_FAILURES=%q: %w", v, ErrInvalidConfiguration)
		}
		c.Reporter.CircuitBreaker.MaxFailures = n
	}
	if v := os.Getenv("SDKGUARD_REPORT_CB_RECOVERY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SDKGUARD_REPORT_CB_RECOVERY=%q: %w", v, ErrInvalidConfiguration)
		}
		c.Reporter.CircuitBreaker.RecoveryTime = d
	}

	// Dedup settings
	if v := os.Getenv("SDKGUARD_DEDUP_PROVIDER"); v != "" {
		c.Dedup.Provider = v
	}
	if v := os.Getenv("SDKGUARD_REDIS_URL"); v != "" {
		c.Dedup.RedisURL = v
	} else if v := os.Getenv("REDIS_URL"); v != "" {
		c.Dedup.RedisURL = v
	}
	if v := os.Getenv("SDKGUARD_DEDUP_PREFIX"); v != "" {
		c.Dedup.Prefix = v
	}
	if v := os.Getenv("SDKGUARD_DEDUP_NAMESPACE"); v != "" {
		c.Dedup.Namespace = v
	}

	// Telemetry settings
	if v := os.Getenv("SDKGUARD_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
	if v := os.Getenv("SDKGUARD_TELEMETRY_EXPORTER"); v != "" {
		c.Telemetry.Exporter = v
	}
	if v := os.Getenv("SDKGUARD_TELEMETRY_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true // Auto-enable if endpoint is provided
	} else if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	}
	if v := os.Getenv("SDKGUARD_TELEMETRY_METRICS_ENDPOINT"); v != "" {
		c.Telemetry.MetricsEndpoint = v
	}
	if v := os.Getenv("SDKGUARD_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	} else if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	}
	if v := os.Getenv("SDKGUARD_TELEMETRY_METRICS"); v != "" {
		c.Telemetry.MetricsEnabled = parseBool(v)
	}
	if v := os.Getenv("SDKGUARD_TELEMETRY_TRACING"); v != "" {
		c.Telemetry.TracingEnabled = parseBool(v)
	}
	if v := os.Getenv("SDKGUARD_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = parseBool(v)
	}
	if v := os.Getenv("SDKGUARD_PROMETHEUS"); v != "" {
		c.Telemetry.Prometheus = parseBool(v)
	}

	// Logging settings
	if v := os.Getenv("SDKGUARD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SDKGUARD_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("SDKGUARD_LOG_OUTPUT"); v != "" {
		c.Logging.Output = v
	}
	if v := os.Getenv("SDKGUARD_LOG_TIME_FORMAT"); v != "" {
		c.Logging.TimeFormat = v
	}

	// Development settings
	if v := os.Getenv("SDKGUARD_DEV_MODE"); v != "" {
		c.applyDevelopmentMode(parseBool(v))
	}
	if v := os.Getenv("SDKGUARD_DEBUG"); v != "" {
		c.Development.DebugLogging = parseBool(v)
	}
	if v := os.Getenv("SDKGUARD_PRETTY_LOGS"); v != "" {
		c.Development.PrettyLogs = parseBool(v)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file.
// File settings override environment variables but are overridden by functional options.
// Durations are strings such as "5s" in both formats.
//
// Example YAML:
//
//	sdk_key: client-xyz
//	reporter:
//	  endpoint: https://diagnostics.example.com/v1/sdk_exception
//	  timeout: 5s
//	dedup:
//	  provider: redis
//	  redis_url: redis://localhost:6379/0
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 -- operator supplied path
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	switch ext {
	case ".json":
		// JSON is valid YAML; decoding it with yaml.v3 accepts "5s" durations.
		if !json.Valid(data) {
			return fmt.Errorf("failed to parse JSON config file: invalid syntax: %w", ErrInvalidConfiguration)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %v: %w", err, ErrInvalidConfiguration)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %v: %w", err, ErrInvalidConfiguration)
		}
	}

	return nil
}

// Validate checks if the configuration is valid and returns an error if not.
// This method is called automatically by NewConfig().
//
// Validation rules:
//   - SDK key is required
//   - SampleRange must be >= 1 and MaxMarkers >= 0
//   - Reporter endpoint must be an absolute http(s) URL
//   - Redis URL is required for the redis dedup provider
//   - Telemetry endpoint is required for the otlp exporter
func (c *Config) Validate() error {
	if c.SDKKey == "" {
		return &SDKError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "sdk key is required",
			Err:     ErrMissingConfiguration,
		}
	}

	if c.Boundary.SampleRange < 1 {
		return &SDKError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid sample range: %d", c.Boundary.SampleRange),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Boundary.MaxMarkers < 0 {
		return &SDKError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid max markers: %d", c.Boundary.MaxMarkers),
			Err:     ErrInvalidConfiguration,
		}
	}

	u, err := url.Parse(c.Reporter.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &SDKError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid report endpoint: %q", c.Reporter.Endpoint),
			Err:     ErrInvalidConfiguration,
		}
	}

	switch c.Dedup.Provider {
	case "memory":
	case "redis":
		if c.Dedup.RedisURL == "" {
			return &SDKError{
				Op:      "Config.Validate",
				Kind:    "config",
				Message: "redis URL is required for the redis dedup provider",
				Err:     ErrMissingConfiguration,
			}
		}
	default:
		return &SDKError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("unknown dedup provider: %q", c.Dedup.Provider),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Telemetry.Enabled {
		switch c.Telemetry.Exporter {
		case "stdout":
		case "otlp":
			if c.Telemetry.Endpoint == "" {
				return &SDKError{
					Op:      "Config.Validate",
					Kind:    "config",
					Message: "telemetry endpoint is required for the otlp exporter",
					Err:     ErrMissingConfiguration,
				}
			}
		default:
			return &SDKError{
				Op:      "Config.Validate",
				Kind:    "config",
				Message: fmt.Sprintf("unknown telemetry exporter: %q", c.Telemetry.Exporter),
				Err:     ErrInvalidConfiguration,
			}
		}
	}

	return nil
}

func (c *Config) applyDevelopmentMode(enabled bool) {
	c.Development.Enabled = enabled
	if enabled {
		c.Development.PrettyLogs = true
		c.Development.DebugLogging = true
		c.Logging.Format = "text"
		c.Logging.Level = "debug"
	}
}

// Helper functions

// parseBool converts a string to a boolean value.
// Accepts: "true", "1", "yes", "on" (case-insensitive) as true.
// Everything else is false.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// WithSDKKey sets the credential sent with exception reports.
func WithSDKKey(key string) Option {
	return func(c *Config) error {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("sdk key cannot be empty: %w", ErrInvalidConfiguration)
		}
		c.SDKKey = key
		return nil
	}
}

// WithEndpoint overrides the exception report endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Config) error {
		c.Reporter.Endpoint = endpoint
		return nil
	}
}

// WithReportTimeout sets the per-request timeout of the report transport.
func WithReportTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout < 0 {
			return fmt.Errorf("report timeout cannot be negative: %w", ErrInvalidConfiguration)
		}
		c.Reporter.Timeout = timeout
		return nil
	}
}

// WithCircuitBreaker configures the reporter circuit breaker.
func WithCircuitBreaker(maxFailures int, recovery time.Duration) Option {
	return func(c *Config) error {
		if maxFailures < 1 {
			return fmt.Errorf("circuit breaker max failures must be positive: %w", ErrInvalidConfiguration)
		}
		c.Reporter.CircuitBreaker = CircuitBreakerConfig{
			Enabled:      true,
			MaxFailures:  maxFailures,
			RecoveryTime: recovery,
		}
		return nil
	}
}

// WithSampleRange sets the range of the instrumentation sampling draw.
func WithSampleRange(n int) Option {
	return func(c *Config) error {
		c.Boundary.SampleRange = n
		return nil
	}
}

// WithMaxMarkers sets the marker budget of a sampled process.
func WithMaxMarkers(n int) Option {
	return func(c *Config) error {
		c.Boundary.MaxMarkers = n
		return nil
	}
}

// WithRedisDedup shares the seen-error set through Redis.
func WithRedisDedup(redisURL string) Option {
	return func(c *Config) error {
		c.Dedup.Provider = "redis"
		c.Dedup.RedisURL = redisURL
		return nil
	}
}

// WithTelemetry enables OpenTelemetry export to endpoint.
func WithTelemetry(enabled bool, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = enabled
		if endpoint != "" {
			c.Telemetry.Endpoint = endpoint
		}
		return nil
	}
}

// WithTelemetryExporter selects "otlp" or "stdout".
func WithTelemetryExporter(exporter string) Option {
	return func(c *Config) error {
		c.Telemetry.Exporter = exporter
		return nil
	}
}

// WithPrometheus exposes the boundary counters on the default Prometheus registry.
func WithPrometheus(enabled bool) Option {
	return func(c *Config) error {
		c.Telemetry.Prometheus = enabled
		return nil
	}
}

// WithLogLevel sets the log level (debug, info, warn, error).
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogFormat sets the log format (json or text).
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		if format != "json" && format != "text" {
			return fmt.Errorf("invalid log format %q: %w", format, ErrInvalidConfiguration)
		}
		c.Logging.Format = format
		return nil
	}
}

// WithConfigFile loads configuration from a JSON or YAML file.
// Options placed after it override file settings.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

// WithDevelopmentMode enables text logs at debug level.
//
// WARNING: Never enable in production!
func WithDevelopmentMode(enabled bool) Option {
	return func(c *Config) error {
		c.applyDevelopmentMode(enabled)
		return nil
	}
}

// NewConfig creates a new configuration with the provided options.
// Configuration is applied in the following order:
//  1. Default values from DefaultConfig()
//  2. Environment variables via LoadFromEnv()
//  3. Functional options (highest priority)
//  4. Validation via Validate()
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
