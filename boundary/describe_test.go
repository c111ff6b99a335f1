package boundary

import (
	"errors"
	"fmt"
	"testing"

	"github.com/itsneelabh/sdkguard/core"
	"github.com/stretchr/testify/assert"
)

type customError struct{}

func (customError) Error() string { return "custom" }

type namedEmpty struct{}

func (namedEmpty) Error() string     { return "x" }
func (namedEmpty) ErrorName() string { return "" }

func TestErrorName(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "errors.New", err: errors.New("x"), want: "Error"},
		{name: "fmt.Errorf without wrap", err: fmt.Errorf("x %d", 1), want: "Error"},
		{name: "named", err: &rangeError{msg: "x"}, want: "RangeError"},
		{name: "wrapped named", err: fmt.Errorf("ctx: %w", &rangeError{msg: "x"}), want: "RangeError"},
		{name: "usage error", err: core.NewUninitializedError("x"), want: "UninitializedError"},
		{name: "value type", err: customError{}, want: "boundary.customError"},
		{name: "pointer type", err: &core.SDKError{Kind: "x"}, want: "core.SDKError"},
		{name: "wrapped type", err: fmt.Errorf("ctx: %w", customError{}), want: "boundary.customError"},
		{name: "multi wrap", err: fmt.Errorf("%w and %w", customError{}, errBoom), want: "boundary.customError"},
		{name: "join", err: errors.Join(errBoom, customError{}), want: "Error"},
		{name: "empty ErrorName falls back", err: namedEmpty{}, want: "boundary.namedEmpty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorName(tt.err))
		})
	}
}

func TestDescribe(t *testing.T) {
	t.Run("error with stack", func(t *testing.T) {
		name, info := describe(&rangeError{msg: "bad index"}, []byte("stack trace"))
		assert.Equal(t, "RangeError", name)
		assert.Equal(t, "RangeError: bad index\nstack trace", info)
	})

	t.Run("error without stack", func(t *testing.T) {
		name, info := describe(errBoom, nil)
		assert.Equal(t, "Error", name)
		assert.Equal(t, "Error: boom", info)
	})

	t.Run("nil failure", func(t *testing.T) {
		name, info := describe(nil, nil)
		assert.Equal(t, "No Name", name)
		assert.Equal(t, `"[sdkguard] Error was empty"`, info)
	})

	t.Run("non-error value", func(t *testing.T) {
		name, info := describe(map[string]int{"code": 7}, []byte("ignored"))
		assert.Equal(t, "No Name", name)
		assert.Equal(t, `{"code":7}`, info)
	})

	t.Run("unmarshalable value", func(t *testing.T) {
		name, info := describe(make(chan int), nil)
		assert.Equal(t, "No Name", name)
		assert.Equal(t, "[sdkguard] Failed to get string for error.", info)
	})

	t.Run("panic error without a value", func(t *testing.T) {
		name, info := describe(&PanicError{Stack: []byte("panic stack")}, nil)
		assert.Equal(t, "No Name", name)
		assert.Equal(t, `"[sdkguard] Error was empty"`, info)
	})

	t.Run("panic error uses panic value and stack", func(t *testing.T) {
		pe := &PanicError{Value: &rangeError{msg: "p"}, Stack: []byte("panic stack")}
		name, info := describe(pe, []byte("other"))
		assert.Equal(t, "RangeError", name)
		assert.Equal(t, "RangeError: p\npanic stack", info)
	})
}
