// Package errors provides structured error types for dbpool.
//
// This package provides:
//   - Sentinel errors for the failure classes the pool can surface
//   - Error codes for categorizing failures in logs and metrics
//   - Error wrapping with context preservation
//   - Safe error messages that don't leak credentials or DSNs
package errors

import (
	"errors"
	"fmt"
)

// Error codes for categorizing errors.
const (
	CodeInternal      = 1000 // Unclassified failure
	CodeInvalidInput  = 1001 // Bad argument or unknown driver
	CodeConfiguration = 1002 // Configuration missing, unreadable or invalid
	CodeConnection    = 1003 // Connect to the backing database failed
	CodeTimeout       = 1004 // Acquire did not complete in time
	CodeClosed        = 1005 // Pool or handle already closed
	CodeState         = 1006 // Operation not valid in the current state
)

// Sentinel errors for common error conditions.
// Use errors.Is() to check for these conditions.
var (
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrClosed indicates a resource is closed.
	ErrClosed = errors.New("closed")

	// ErrInvalidState indicates an invalid state transition.
	ErrInvalidState = errors.New("invalid state")

	// ErrConnection indicates a connection error.
	ErrConnection = errors.New("connection error")

	// ErrInternal indicates an internal error.
	ErrInternal = errors.New("internal error")

	// ErrConfiguration indicates a configuration error.
	ErrConfiguration = errors.New("configuration error")
)

// Pool errors
var (
	// ErrPoolClosed is returned when operating on a closed pool.
	ErrPoolClosed = fmt.Errorf("pool: %w", ErrClosed)

	// ErrAcquireTimeout is returned when no idle connection became
	// available within the acquire timeout.
	ErrAcquireTimeout = fmt.Errorf("pool: acquire: %w", ErrTimeout)

	// ErrHandleReleased is returned when a handle is used after release.
	ErrHandleReleased = fmt.Errorf("pool: handle released: %w", ErrInvalidState)
)

// Database connection errors
var (
	// ErrUnknownDriver indicates the configured driver is not supported.
	ErrUnknownDriver = fmt.Errorf("dbconn: unknown driver: %w", ErrInvalidInput)

	// ErrNotConnected indicates a statement was issued before Connect.
	ErrNotConnected = fmt.Errorf("dbconn: not connected: %w", ErrInvalidState)
)

// Error is a structured error with a code and safe message.
type Error struct {
	// Code is the error code for categorization
	Code int `json:"code"`
	// Message is a safe, user-facing error message
	Message string `json:"message"`
	// Err is the underlying error (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// SafeMessage returns a message without internal details.
func (e *Error) SafeMessage() string {
	return e.Message
}

// New creates a new structured error with the given code and message.
func New(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a code and safe message.
// The original error is preserved for debugging.
func Wrap(code int, message string, err error) *Error {
	if err != nil {
		log.WithField("code", code).WithError(err).Debug("wrapping error")
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Connection wraps a failed connect attempt so that it matches ErrConnection.
// The driver error is kept for errors.As but its text, which may carry a
// DSN, is only visible through Error().
func Connection(driver string, err error) *Error {
	return Wrap(CodeConnection, "connect "+driver, fmt.Errorf("%w: %w", ErrConnection, err))
}

// Configuration wraps a configuration failure so that it matches ErrConfiguration.
func Configuration(message string, err error) *Error {
	if err == nil {
		return Wrap(CodeConfiguration, message, ErrConfiguration)
	}
	return Wrap(CodeConfiguration, message, fmt.Errorf("%w: %w", ErrConfiguration, err))
}

// FromSentinel creates a structured error from a sentinel error.
func FromSentinel(err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    CodeOf(err),
		Message: err.Error(),
		Err:     err,
	}
}

// CodeOf maps an error to its code. Structured errors keep their own code.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	switch {
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrClosed):
		return CodeClosed
	case errors.Is(err, ErrConnection):
		return CodeConnection
	case errors.Is(err, ErrConfiguration):
		return CodeConfiguration
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrInvalidState):
		return CodeState
	default:
		return CodeInternal
	}
}

// IsTimeout returns true if the error indicates a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsClosed returns true if the error indicates a resource is closed.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// IsConnection returns true if the error came from a failed connect.
func IsConnection(err error) bool {
	return errors.Is(err, ErrConnection)
}

// IsConfiguration returns true if the error indicates a configuration problem.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsInvalidInput returns true if the error indicates invalid input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsInvalidState returns true if the error indicates an invalid state.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// Join combines multiple errors into a single error.
// Returns nil if all errors are nil.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
