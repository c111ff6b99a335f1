// Package reporter delivers exception reports to the diagnostics endpoint.
package reporter

import (
	"context"
	"fmt"
)

// Metadata keys that are also sent as request headers.
const (
	MetadataSDKType    = "sdkType"
	MetadataSDKVersion = "sdkVersion"
)

// Report is the JSON body of one exception report.
type Report struct {
	Tag             string         `json:"tag"`
	Exception       string         `json:"exception"`
	Info            string         `json:"info,omitempty"`
	StatsigMetadata map[string]any `json:"statsigMetadata"`
	Extra           map[string]any `json:"extra"`
}

// NewReport builds a report. nil metadata and extra are sent as empty objects.
func NewReport(tag, exception, info string, metadata, extra map[string]any) *Report {
	if metadata == nil {
		metadata = map[string]any{}
	}
	if extra == nil {
		extra = map[string]any{}
	}
	return &Report{
		Tag:             tag,
		Exception:       exception,
		Info:            info,
		StatsigMetadata: metadata,
		Extra:           extra,
	}
}

// Reporter sends exception reports. Implementations must be safe for
// concurrent use; the boundary calls Report from detached goroutines.
type Reporter interface {
	Report(ctx context.Context, report *Report) error
}

// NoopReporter drops every report.
type NoopReporter struct{}

func (NoopReporter) Report(context.Context, *Report) error { return nil }

// metadataString stringifies a metadata value for a header. ok is false when
// the key is absent or empty.
func metadataString(md map[string]any, key string) (string, bool) {
	v, present := md[key]
	if !present || v == nil {
		return "", false
	}
	s := fmt.Sprint(v)
	return s, s != ""
}
