// Package domainerrors provides coded errors that cross layer boundaries.
// Stores surface sentinel errors; services translate them into coded errors
// here; transports map codes onto status codes without inspecting messages.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error discriminator.
type Code string

// Generic codes shared by every feature.
const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeBadRequest         Code = "BAD_REQUEST"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeInternal           Code = "INTERNAL_ERROR"
	CodeInvariantViolation Code = "INVARIANT_VIOLATION"
)

// Registry-specific codes.
const (
	CodeEmptyName           Code = "EMPTY_NAME"
	CodeNameUnavailable     Code = "NAME_UNAVAILABLE"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeNotAuthorized       Code = "NOT_AUTHORIZED"
	CodeZeroTarget          Code = "ZERO_TARGET"
	CodeInvalidDuration     Code = "INVALID_DURATION"
	CodeCounterUnderflow    Code = "COUNTER_UNDERFLOW"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. If err already
// carries a code, that code is preserved and only context is added.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		code = de.Code
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == code
}

// CodeOf extracts the code from err, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Is allows coded errors to match by code through errors.Is.
func (e *Error) Is(target error) bool {
	var de *Error
	return errors.As(target, &de) && de.Code == e.Code
}
