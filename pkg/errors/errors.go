// Package errors provides structured error types for boardroute.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the placement and routing stages
//   - Machine-readable error codes for programmatic handling
//   - Messages that name the offending component or net
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes fall into three groups:
//   - Structural (INVALID_GEOMETRY, DANGLING_REFERENCE, BOARD_TOO_SMALL, ...):
//     fatal for a design, surfaced to the caller before or during placement.
//   - Recoverable (SINGLETON_NET, NO_PATH_FOUND, BUDGET_EXCEEDED): handled
//     locally and reported as warnings or in routing statistics.
//   - Runtime (CANCELED, INTERNAL_ERROR).
//
// # Usage
//
//	err := errors.New(errors.ErrCodeDanglingReference, "net %s: unknown component %s", net, ref)
//	if errors.Is(err, errors.ErrCodeDanglingReference) {
//	    // Report to the author of the design
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeCanceled, ctx.Err(), "routing aborted before net %s", net)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput       Code = "INVALID_INPUT"
	ErrCodeInvalidConfig      Code = "INVALID_CONFIG"
	ErrCodeInvalidGeometry    Code = "INVALID_GEOMETRY"
	ErrCodeDanglingReference  Code = "DANGLING_REFERENCE"
	ErrCodeDuplicateReference Code = "DUPLICATE_REFERENCE"
	ErrCodeSingletonNet       Code = "SINGLETON_NET"

	// Placement errors
	ErrCodeBoardTooSmall   Code = "BOARD_TOO_SMALL"
	ErrCodePlacementFailed Code = "PLACEMENT_FAILED"

	// Routing errors
	ErrCodeNoPathFound    Code = "NO_PATH_FOUND"
	ErrCodeBudgetExceeded Code = "BUDGET_EXCEEDED"

	// Resource not found errors
	ErrCodeNotFound          Code = "NOT_FOUND"
	ErrCodeFootprintNotFound Code = "FOOTPRINT_NOT_FOUND"
	ErrCodeFileNotFound      Code = "FILE_NOT_FOUND"

	// Runtime errors
	ErrCodeCanceled    Code = "CANCELED"
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Subject string // Offending component reference or net name (optional)
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// About sets the offending component or net and returns e for chaining.
func (e *Error) About(subject string) *Error {
	e.Subject = subject
	return e
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// GetSubject returns the component or net named by err, if any.
func GetSubject(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Subject
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsFatal reports whether err aborts a whole routing request.
// Singleton nets, unroutable edges and exhausted budgets are recovered
// locally; everything else stops the design.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case ErrCodeSingletonNet, ErrCodeNoPathFound, ErrCodeBudgetExceeded:
		return false
	}
	return err != nil
}
