// Package errors defines common error types for the job system.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the job system.
const (
	CodeUnknown         = "UNKNOWN_ERROR"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeConfigError     = "CONFIG_ERROR"
	CodeSchedulerState  = "SCHEDULER_STATE"
	CodeDependencyError = "DEPENDENCY_ERROR"
	CodeTopologyError   = "TOPOLOGY_ERROR"
	CodeStorageError    = "STORAGE_ERROR"
	CodeDatabaseError   = "DATABASE_ERROR"
	CodeNotFound        = "NOT_FOUND"
)

// AppError represents an application error with a code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError carrying the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code string, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error instances.
var (
	ErrInvalidInput = New(CodeInvalidInput, "invalid input")
	ErrConfigError  = New(CodeConfigError, "configuration error")
	ErrNotFound     = New(CodeNotFound, "resource not found")
	ErrStorageError = New(CodeStorageError, "storage error")
	ErrDatabase     = New(CodeDatabaseError, "database error")

	// Scheduler lifecycle misuse.
	ErrNotInitialized     = New(CodeSchedulerState, "scheduler not initialized")
	ErrAlreadyInitialized = New(CodeSchedulerState, "scheduler already initialized")
	ErrSchedulerStopped   = New(CodeSchedulerState, "scheduler stopped")

	ErrInvalidHandle = New(CodeInvalidInput, "invalid job handle")
	ErrDependency    = New(CodeDependencyError, "invalid dependency")

	ErrPinUnsupported = New(CodeTopologyError, "thread pinning not supported on this platform")
	ErrTopology       = New(CodeTopologyError, "hardware topology error")
)

// IsSchedulerStateError checks if the error is a scheduler lifecycle error.
func IsSchedulerStateError(err error) bool {
	return errors.Is(err, ErrSchedulerStopped)
}

// IsDependencyError checks if the error is a dependency graph error.
func IsDependencyError(err error) bool {
	return errors.Is(err, ErrDependency)
}

// IsTopologyError checks if the error is a hardware topology error.
func IsTopologyError(err error) bool {
	return errors.Is(err, ErrTopology)
}

// IsConfigError checks if the error is a configuration error.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfigError)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
