package boundary

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/itsneelabh/sdkguard/core"
)

// ExtraDataFunc supplies additional report context. It only runs when a
// failure is reported, inside the reporting goroutine.
type ExtraDataFunc func(ctx context.Context) (map[string]any, error)

// CaptureOption configures a single guarded call.
type CaptureOption func(*captureOptions)

type captureOptions struct {
	extra ExtraDataFunc
}

// WithExtraData attaches extra context to the report of a failure.
func WithExtraData(fn ExtraDataFunc) CaptureOption {
	return func(o *captureOptions) { o.extra = fn }
}

func newCaptureOptions(opts []CaptureOption) captureOptions {
	var o captureOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// failure is what a task produced instead of a result.
type failure struct {
	value    any
	panicked bool
	stack    []byte
}

// usageError returns the failure as an error when it must reach the caller.
func (f *failure) usageError() (error, bool) {
	err, ok := f.value.(error)
	if !ok || !core.IsUsageError(err) {
		return nil, false
	}
	return err, true
}

func runGuarded[T any](task func() (T, error)) (result T, f *failure) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			f = &failure{value: panicValue(r), panicked: true, stack: debug.Stack()}
		}
	}()
	v, err := task()
	if err != nil {
		return v, &failure{value: err, stack: debug.Stack()}
	}
	return v, nil
}

// Capture runs task under tag.
//
// On success the task's value is returned unchanged. An unexpected failure,
// a returned error or a panic, is logged once, reported in the background
// and replaced by fallback() (the zero value when fallback is nil); the
// returned error is then nil. Usage errors (core.IsUsageError) are never
// recovered: a returned one is returned, a panicked one panics again with
// the same value.
func Capture[T any](b *Boundary, tag string, task func() (T, error), fallback func() T, opts ...CaptureOption) (T, error) {
	o := newCaptureOptions(opts)

	markerID := b.beginMarker(tag)
	result, f := runGuarded(task)
	if f == nil {
		b.endMarker(tag, true, markerID)
		return result, nil
	}
	b.endMarker(tag, false, markerID)
	return onCaught(b, tag, f, fallback, o.extra)
}

// Swallow is Capture without a result. It only returns usage errors.
func (b *Boundary) Swallow(tag string, task func() error, opts ...CaptureOption) error {
	_, err := Capture(b, tag, func() (struct{}, error) {
		return struct{}{}, task()
	}, nil, opts...)
	return err
}

// CaptureFuture guards a task that produces a Future.
//
// A synchronous failure of task is handled exactly like Capture and yields an
// already settled future. Otherwise CaptureFuture returns at once with a new
// future that settles after the inner one: with its value on fulfilment, with
// fallback() on rejection. A usage-error rejection rejects the returned
// future with the same error. The marker closes once the inner future settles.
func CaptureFuture[T any](b *Boundary, tag string, task func() (*Future[T], error), fallback func() T, opts ...CaptureOption) (*Future[T], error) {
	o := newCaptureOptions(opts)

	markerID := b.beginMarker(tag)
	inner, f := runGuarded(task)
	if f != nil {
		b.endMarker(tag, false, markerID)
		v, err := onCaught(b, tag, f, fallback, o.extra)
		if err != nil {
			return nil, err
		}
		return Resolved(v), nil
	}
	if inner == nil {
		var zero T
		inner = Resolved(zero)
	}

	outer, settle := NewFuture[T]()
	go func() {
		<-inner.Done()
		v, err := inner.result()
		if err == nil {
			b.endMarker(tag, true, markerID)
			settle(v, nil)
			return
		}
		b.endMarker(tag, false, markerID)

		defer func() {
			if r := recover(); r != nil {
				var zero T
				settle(zero, newPanicError(r))
			}
		}()
		var value any = err
		if errors.Is(err, ErrEmptyRejection) {
			value = nil
		}
		settle(onCaught(b, tag, &failure{value: value, stack: debug.Stack()}, fallback, o.extra))
	}()
	return outer, nil
}

// CaptureAsync runs task in its own goroutine under tag and returns the
// guarded future. It is CaptureFuture over Go.
func CaptureAsync[T any](ctx context.Context, b *Boundary, tag string, task func(context.Context) (T, error), fallback func() T, opts ...CaptureOption) *Future[T] {
	f, err := CaptureFuture(b, tag, func() (*Future[T], error) {
		return Go(ctx, task), nil
	}, fallback, opts...)
	if err != nil {
		return Rejected[T](err)
	}
	return f
}

func onCaught[T any](b *Boundary, tag string, f *failure, fallback func() T, extra ExtraDataFunc) (T, error) {
	if err, ok := f.usageError(); ok {
		b.metrics.RecordRethrown(tag)
		if f.panicked {
			panic(f.value)
		}
		var zero T
		return zero, err
	}

	b.metrics.RecordCaptured(tag)
	b.logger.Error("[sdkguard] An unexpected exception occurred.", map[string]interface{}{
		"tag":        tag,
		"error":      fmt.Sprintf("%v", f.value),
		"error_type": fmt.Sprintf("%T", f.value),
		"panicked":   f.panicked,
	})
	b.dispatch(tag, f.value, f.stack, extra)

	if fallback == nil {
		var zero T
		return zero, nil
	}
	return fallback(), nil
}
