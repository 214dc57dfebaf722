// Package domainerrors provides coded errors for the service layer. Stores and
// infrastructure return sentinel errors (pkg/platform/sentinel); services wrap
// or translate them into coded errors so transport layers can map codes to
// HTTP statuses without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers and transport mapping.
type Code string

const (
	CodeInvalidInput       Code = "invalid_input"
	CodeBadRequest         Code = "bad_request"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeCapacityExceeded   Code = "capacity_exceeded"
	CodeInvariantViolation Code = "invariant_violation"
	CodeUnavailable        Code = "unavailable"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal"
)

// Error carries a code, a human-readable message, and an optional cause.
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

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error. Returns nil when
// err is nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the outermost coded error in err's chain, or
// CodeInternal when the chain carries no coded error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether any error in err's chain carries the given code.
func HasCode(err error, code Code) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if de, ok := e.(*Error); ok && de.Code == code {
			return true
		}
	}
	return false
}

// Is delegates to errors.Is so callers importing this package only need one
// errors vocabulary.
func Is(err, target error) bool { return errors.Is(err, target) }
