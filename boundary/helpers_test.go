package boundary

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/itsneelabh/sdkguard/core"
	"github.com/itsneelabh/sdkguard/diagnostics"
	"github.com/itsneelabh/sdkguard/reporter"
	"github.com/stretchr/testify/require"
)

// fakeReporter records every report it receives.
type fakeReporter struct {
	mu      sync.Mutex
	reports []*reporter.Report
	err     error
}

func (f *fakeReporter) Report(_ context.Context, r *reporter.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return f.err
}

func (f *fakeReporter) all() []*reporter.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*reporter.Report(nil), f.reports...)
}

// recordingLogger keeps error lines for assertions.
type recordingLogger struct {
	core.NoOpLogger
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Error(msg string, _ map[string]interface{}) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

// rangeError names itself like a JavaScript RangeError.
type rangeError struct{ msg string }

func (e *rangeError) Error() string     { return e.msg }
func (e *rangeError) ErrorName() string { return "RangeError" }

type testBoundary struct {
	*Boundary
	reporter *fakeReporter
	logger   *recordingLogger
	store    *diagnostics.Store
}

func newTestBoundary(t *testing.T, opts ...Option) *testBoundary {
	t.Helper()
	rep := &fakeReporter{}
	logger := &recordingLogger{}
	store := diagnostics.NewStore()
	base := []Option{
		WithReporter(rep),
		WithLogger(logger),
		WithDiagnostics(store),
		WithSampler(func(int) int { return 1 }),
	}
	b := New("client-key", append(base, opts...)...)
	return &testBoundary{Boundary: b, reporter: rep, logger: logger, store: store}
}

func (tb *testBoundary) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tb.Flush(ctx))
}

var errBoom = errors.New("boom")
