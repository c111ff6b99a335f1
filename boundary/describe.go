package boundary

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

const (
	// Substituted when a failure carries no value at all.
	emptyFailure = "[sdkguard] Error was empty"
	// Name of failures that are not errors.
	noName = "No Name"
	// Info of non-error failures that cannot be rendered as JSON.
	undescribable = "[sdkguard] Failed to get string for error."
	// Name of plain errors.New / fmt.Errorf values.
	genericName = "Error"
)

// Named lets an error choose the name it is reported and deduplicated under.
type Named interface {
	ErrorName() string
}

// describe returns the report name and info of a failure value.
func describe(value any, stack []byte) (name, info string) {
	if pe, ok := value.(*PanicError); ok {
		value, stack = pe.Value, pe.Stack
	}
	if value == nil {
		value = emptyFailure
	}

	err, isError := value.(error)
	if !isError {
		data, jerr := json.Marshal(value)
		if jerr != nil {
			return noName, undescribable
		}
		return noName, string(data)
	}

	name = ErrorName(err)
	info = fmt.Sprintf("%s: %s", name, err.Error())
	if len(stack) > 0 {
		info += "\n" + string(stack)
	}
	return name, info
}

// ErrorName is the name err is reported under: the ErrorName of the first
// error in its chain implementing Named, otherwise the dynamic type name of
// the innermost error behind generic fmt and errors wrappers.
func ErrorName(err error) string {
	var named Named
	if errors.As(err, &named) {
		if n := named.ErrorName(); n != "" {
			return n
		}
	}

	for err != nil {
		switch typeName(err) {
		case "fmt.wrapError", "fmt.wrapErrors", "errors.joinError":
			err = firstWrapped(err)
		case "errors.errorString":
			return genericName
		default:
			return typeName(err)
		}
	}
	return genericName
}

func typeName(v any) string {
	return strings.TrimLeft(reflect.TypeOf(v).String(), "*")
}

func firstWrapped(err error) error {
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return u.Unwrap()
	case interface{ Unwrap() []error }:
		if errs := u.Unwrap(); len(errs) > 0 {
			return errs[0]
		}
	}
	return nil
}
