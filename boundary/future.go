package boundary

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// PanicError is the rejection of a Future whose function panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func newPanicError(value any) *PanicError {
	return &PanicError{Value: panicValue(value), Stack: debug.Stack()}
}

// panicValue maps the *runtime.PanicNilError of panic(nil) back to nil.
func panicValue(r any) any {
	var pn *runtime.PanicNilError
	if err, ok := r.(error); ok && errors.As(err, &pn) {
		return nil
	}
	return r
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Future is a computation that settles exactly once with a value or an error.
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

// NewFuture returns a pending future and the function that settles it.
// Only the first call to settle has an effect.
func NewFuture[T any]() (*Future[T], func(T, error)) {
	f := &Future[T]{done: make(chan struct{})}
	return f, f.settle
}

func (f *Future[T]) settle(value T, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Resolved returns a future fulfilled with value.
func Resolved[T any](value T) *Future[T] {
	f, settle := NewFuture[T]()
	settle(value, nil)
	return f
}

// Rejected returns a future rejected with err. A nil err still counts as a
// rejection and reaches Await as ErrEmptyRejection.
func Rejected[T any](err error) *Future[T] {
	if err == nil {
		err = ErrEmptyRejection
	}
	f, settle := NewFuture[T]()
	var zero T
	settle(zero, err)
	return f
}

// ErrEmptyRejection marks a future rejected without an error value.
var ErrEmptyRejection = errors.New("future rejected without an error")

// Go runs fn in a new goroutine. A panic in fn rejects the future with a
// *PanicError instead of crashing the process.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f, settle := NewFuture[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				settle(zero, newPanicError(r))
			}
		}()
		settle(fn(ctx))
	}()
	return f
}

// Done is closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future settles or ctx ends.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// result must only be called after Done is closed.
func (f *Future[T]) result() (T, error) {
	return f.value, f.err
}
