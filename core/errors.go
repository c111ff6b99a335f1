package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Usage errors. The boundary never swallows these.
	ErrNotInitialized  = errors.New("client not initialized")
	ErrInvalidArgument = errors.New("invalid argument")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// Reporting errors
	ErrReportRejected = errors.New("exception report rejected")
	ErrCircuitOpen    = errors.New("reporter circuit breaker open")

	// Backend errors
	ErrConnectionFailed = errors.New("connection failed")
)

// SDKError provides structured error information with context
// It implements the error interface and supports error wrapping
type SDKError struct {
	Op      string // Operation that failed (e.g., "Config.Validate")
	Kind    string // Error kind (e.g., "config", "reporter")
	Message string // Human-readable message
	Err     error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *SDKError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Op != "" && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *SDKError) Unwrap() error {
	return e.Err
}

// NewSDKError creates a new SDKError
func NewSDKError(op, kind string, err error) *SDKError {
	return &SDKError{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// UninitializedError is raised when an SDK method is called before the
// client finished initializing.
type UninitializedError struct {
	Op string
}

// NewUninitializedError returns an UninitializedError for op.
func NewUninitializedError(op string) *UninitializedError {
	return &UninitializedError{Op: op}
}

func (e *UninitializedError) Error() string {
	if e.Op == "" {
		return "[sdkguard] call made before the client was initialized"
	}
	return fmt.Sprintf("[sdkguard] %s called before the client was initialized", e.Op)
}

// Is matches ErrNotInitialized.
func (e *UninitializedError) Is(target error) bool {
	return target == ErrNotInitialized
}

// ErrorName is the name used when the error shows up in reports.
func (e *UninitializedError) ErrorName() string { return "UninitializedError" }

// InvalidArgumentError is raised when the host application passes an
// argument the SDK cannot use.
type InvalidArgumentError struct {
	Op       string
	Argument string
	Message  string
}

// NewInvalidArgumentError returns an InvalidArgumentError.
func NewInvalidArgumentError(op, argument, message string) *InvalidArgumentError {
	return &InvalidArgumentError{Op: op, Argument: argument, Message: message}
}

func (e *InvalidArgumentError) Error() string {
	switch {
	case e.Argument != "" && e.Message != "":
		return fmt.Sprintf("[sdkguard] invalid argument %q: %s", e.Argument, e.Message)
	case e.Message != "":
		return "[sdkguard] invalid argument: " + e.Message
	case e.Argument != "":
		return fmt.Sprintf("[sdkguard] invalid argument %q", e.Argument)
	}
	return "[sdkguard] invalid argument"
}

// Is matches ErrInvalidArgument.
func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// ErrorName is the name used when the error shows up in reports.
func (e *InvalidArgumentError) ErrorName() string { return "InvalidArgumentError" }

// IsUsageError reports whether err is a caller-integration error that must
// reach the host application instead of being recovered.
func IsUsageError(err error) bool {
	return errors.Is(err, ErrNotInitialized) ||
		errors.Is(err, ErrInvalidArgument)
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}
