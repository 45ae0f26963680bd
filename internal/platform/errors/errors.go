package errors

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers and the HTTP surface.
type Code string

const (
	ErrCodeNotFound          Code = "NOT_FOUND"
	ErrCodeInvalidInput      Code = "INVALID_INPUT"
	ErrCodeInvalidTransition Code = "INVALID_TRANSITION"
	ErrCodeReadOnly          Code = "READ_ONLY"
	ErrCodeAlreadyDecided    Code = "ALREADY_DECIDED"
	ErrCodeConflict          Code = "CONFLICT"
	ErrCodeUnauthorized      Code = "UNAUTHORIZED"
	ErrCodeInternal          Code = "INTERNAL"
)

// Error is a coded error. Code is stable API; Message is for humans.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *Error {
	return Newf(ErrCodeNotFound, "%s '%s' not found", resource, id)
}

// InvalidInput reports a rejected request field.
func InvalidInput(field, message string) *Error {
	return Newf(ErrCodeInvalidInput, "%s: %s", field, message)
}

// InvalidTransition reports a state change that violates an adjacency table.
func InvalidTransition(entity, from, to string) *Error {
	return Newf(ErrCodeInvalidTransition, "%s cannot transition from '%s' to '%s'", entity, from, to)
}

// CodeOf extracts the code from err, defaulting to INTERNAL.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool {
	return Is(err, ErrCodeNotFound)
}

// IsConflict reports whether err is a CONFLICT error.
func IsConflict(err error) bool {
	return Is(err, ErrCodeConflict)
}
