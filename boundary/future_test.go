package boundary

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/itsneelabh/sdkguard/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func awaitResult[T any](t *testing.T, f *Future[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.Await(ctx)
}

func TestFutureSettlesOnce(t *testing.T) {
	f, settle := NewFuture[int]()
	settle(1, nil)
	settle(2, errBoom)

	v, err := awaitResult(t, f)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFutureAwaitContext(t *testing.T) {
	f, _ := NewFuture[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGoConvertsPanics(t *testing.T) {
	f := Go(context.Background(), func(context.Context) (int, error) {
		panic(errBoom)
	})

	_, err := awaitResult(t, f)
	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Same(t, errBoom, pe.Value)
	assert.ErrorIs(t, err, errBoom)
	assert.NotEmpty(t, pe.Stack)
	assert.Equal(t, "panic: boom", pe.Error())
}

func TestRejectedNil(t *testing.T) {
	_, err := awaitResult(t, Rejected[int](nil))
	assert.ErrorIs(t, err, ErrEmptyRejection)
}

func TestCaptureFutureFulfilled(t *testing.T) {
	tb := newTestBoundary(t)
	inner, settle := NewFuture[string]()

	outer, err := CaptureFuture(tb.Boundary, "getConfig", func() (*Future[string], error) {
		return inner, nil
	}, func() string { return "fallback" })
	require.NoError(t, err)

	select {
	case <-outer.Done():
		t.Fatal("outer settled before inner")
	default:
	}

	settle("config", nil)
	v, err := awaitResult(t, outer)
	require.NoError(t, err)
	assert.Equal(t, "config", v)
	tb.flush(t)
	assert.Empty(t, tb.reporter.all())
}

func TestCaptureFutureRejected(t *testing.T) {
	tb := newTestBoundary(t)

	outer, err := CaptureFuture(tb.Boundary, "getConfig", func() (*Future[int], error) {
		return Rejected[int](&rangeError{msg: "late"}), nil
	}, func() int { return -1 })
	require.NoError(t, err)

	v, err := awaitResult(t, outer)
	require.NoError(t, err)
	assert.Equal(t, -1, v)

	tb.flush(t)
	reports := tb.reporter.all()
	require.Len(t, reports, 1)
	assert.Equal(t, "RangeError", reports[0].Exception)
	assert.True(t, strings.HasPrefix(reports[0].Info, "RangeError: late\n"), reports[0].Info)
	assert.Contains(t, reports[0].Info, "goroutine", "deferred failures carry a stack like synchronous ones")
}

func TestCaptureAsyncNilPanic(t *testing.T) {
	tb := newTestBoundary(t)

	outer := CaptureAsync(context.Background(), tb.Boundary, "load", func(context.Context) (int, error) {
		panic(nil)
	}, func() int { return -1 })

	v, err := awaitResult(t, outer)
	require.NoError(t, err)
	assert.Equal(t, -1, v)

	tb.flush(t)
	reports := tb.reporter.all()
	require.Len(t, reports, 1)
	assert.Equal(t, "No Name", reports[0].Exception)
	assert.Equal(t, `"[sdkguard] Error was empty"`, reports[0].Info)
}

func TestCaptureFutureUsageRejection(t *testing.T) {
	tb := newTestBoundary(t)
	usage := core.NewUninitializedError("getConfig")

	outer, err := CaptureFuture(tb.Boundary, "getConfig", func() (*Future[int], error) {
		return Rejected[int](usage), nil
	}, func() int { return -1 })
	require.NoError(t, err)

	_, err = awaitResult(t, outer)
	assert.Same(t, usage, err)
	tb.flush(t)
	assert.Empty(t, tb.reporter.all())
}

func TestCaptureFutureSynchronousFailure(t *testing.T) {
	tb := newTestBoundary(t)

	outer, err := CaptureFuture(tb.Boundary, "getConfig", func() (*Future[int], error) {
		return nil, errBoom
	}, func() int { return -1 })
	require.NoError(t, err)

	v, err := awaitResult(t, outer)
	require.NoError(t, err)
	assert.Equal(t, -1, v)

	usage := core.NewInvalidArgumentError("getConfig", "name", "")
	_, err = CaptureFuture(tb.Boundary, "getConfig", func() (*Future[int], error) {
		return nil, usage
	}, func() int { return -1 })
	assert.Same(t, usage, err)
}

func TestCaptureFutureNilFuture(t *testing.T) {
	tb := newTestBoundary(t)

	outer, err := CaptureFuture(tb.Boundary, "t", func() (*Future[int], error) { return nil, nil }, nil)
	require.NoError(t, err)
	v, err := awaitResult(t, outer)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestCaptureFutureEmptyRejection(t *testing.T) {
	tb := newTestBoundary(t)

	outer, err := CaptureFuture(tb.Boundary, "t", func() (*Future[int], error) {
		return Rejected[int](nil), nil
	}, func() int { return 5 })
	require.NoError(t, err)

	v, err := awaitResult(t, outer)
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	tb.flush(t)
	reports := tb.reporter.all()
	require.Len(t, reports, 1)
	assert.Equal(t, "No Name", reports[0].Exception)
	assert.Equal(t, `"[sdkguard] Error was empty"`, reports[0].Info)
}

func TestCaptureFutureFallbackPanic(t *testing.T) {
	tb := newTestBoundary(t)

	outer, err := CaptureFuture(tb.Boundary, "t", func() (*Future[int], error) {
		return Rejected[int](errBoom), nil
	}, func() int { panic("fallback bug") })
	require.NoError(t, err)

	_, err = awaitResult(t, outer)
	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "fallback bug", pe.Value)
}

func TestCaptureAsync(t *testing.T) {
	tb := newTestBoundary(t)
	ctx := context.Background()

	ok := CaptureAsync(ctx, tb.Boundary, "fetch", func(context.Context) (int, error) { return 10, nil }, func() int { return -1 })
	v, err := awaitResult(t, ok)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	failed := CaptureAsync(ctx, tb.Boundary, "fetch", func(context.Context) (int, error) { return 0, errBoom }, func() int { return -1 })
	v, err = awaitResult(t, failed)
	require.NoError(t, err)
	assert.Equal(t, -1, v)

	panicked := CaptureAsync(ctx, tb.Boundary, "fetch", func(context.Context) (int, error) { panic(&rangeError{msg: "async"}) }, func() int { return -2 })
	v, err = awaitResult(t, panicked)
	require.NoError(t, err)
	assert.Equal(t, -2, v)

	tb.flush(t)
	reports := tb.reporter.all()
	require.Len(t, reports, 2)
	names := []string{reports[0].Exception, reports[1].Exception}
	assert.ElementsMatch(t, []string{"Error", "RangeError"}, names)
}

func TestCaptureAsyncUsagePanicRejects(t *testing.T) {
	tb := newTestBoundary(t)
	usage := core.NewUninitializedError("fetch")

	f := CaptureAsync(context.Background(), tb.Boundary, "fetch", func(context.Context) (int, error) {
		panic(usage)
	}, func() int { return -1 })

	_, err := awaitResult(t, f)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotInitialized)
	var pe *PanicError
	assert.True(t, errors.As(err, &pe))
}
