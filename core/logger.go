package core

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/lmittmann/tint"
)

// ProductionLogger is the default Logger used by every sdkguard component.
//
// It writes one line per call through a log/slog handler:
//   - "json" format: slog.JSONHandler, suited for log aggregation
//   - "text" format: tint handler, human-readable (colored when PrettyLogs is set)
//
// The component field identifies which part of the SDK emitted the line.
type ProductionLogger struct {
	logger      *slog.Logger
	level       *slog.LevelVar
	serviceName string
	component   string
}

// NewProductionLogger creates a logger from logging and development settings.
// Output "stderr" writes to os.Stderr, anything else to os.Stdout.
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	var w io.Writer = os.Stdout
	if strings.EqualFold(logging.Output, "stderr") {
		w = os.Stderr
	}
	return newProductionLogger(w, logging, dev, serviceName)
}

func newProductionLogger(w io.Writer, logging LoggingConfig, dev DevelopmentConfig, serviceName string) *ProductionLogger {
	level := new(slog.LevelVar)
	level.Set(parseLevel(logging.Level))
	if dev.DebugLogging {
		level.Set(slog.LevelDebug)
	}

	var handler slog.Handler
	if strings.EqualFold(logging.Format, "text") {
		timeFormat := logging.TimeFormat
		if timeFormat == "" {
			timeFormat = "15:04:05.000"
		}
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: timeFormat,
			NoColor:    !dev.PrettyLogs,
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}

	logger := slog.New(handler)
	if serviceName != "" {
		logger = logger.With("service", serviceName)
	}

	return &ProductionLogger{
		logger:      logger,
		level:       level,
		serviceName: serviceName,
	}
}

// WithComponent returns a child logger that tags every line with component.
func (p *ProductionLogger) WithComponent(component string) Logger {
	return &ProductionLogger{
		logger:      p.logger.With("component", component),
		level:       p.level,
		serviceName: p.serviceName,
		component:   component,
	}
}

// SetLevel dynamically updates the log level. The change is shared with
// every logger derived through WithComponent.
func (p *ProductionLogger) SetLevel(level string) {
	p.level.Set(parseLevel(level))
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.log(slog.LevelInfo, msg, fields)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.log(slog.LevelWarn, msg, fields)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.log(slog.LevelError, msg, fields)
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	p.log(slog.LevelDebug, msg, fields)
}

func (p *ProductionLogger) log(level slog.Level, msg string, fields map[string]interface{}) {
	ctx := context.Background()
	if !p.logger.Enabled(ctx, level) {
		return
	}
	p.logger.LogAttrs(ctx, level, msg, fieldAttrs(fields)...)
}

// fieldAttrs converts a field map into attributes in key order so that
// output is stable.
func fieldAttrs(fields map[string]interface{}) []slog.Attr {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	return attrs
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
