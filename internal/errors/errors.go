// Package errors provides the typed error kinds returned by the IronCrew engine.
//
// Every failure a caller can act on is one of four kinds: Validation (bad
// input), Forbidden (the actor lacks the role), Conflict (a uniqueness or state
// rule would be broken) and NotFound. Anything else is Internal.
//
// Services return these directly:
//
//	if duel.Status != domain.DuelPending {
//	    return errors.Conflictf("duel is %s, not pending", duel.Status)
//	}
//
// and callers branch on the kind with the standard errors.Is:
//
//	if errors.Is(err, domainerrors.ErrConflict) { ... }
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the machine-readable kind carried in API error bodies.
type Code string

const (
	CodeNotFound     Code = "NOT_FOUND"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeValidation   Code = "VALIDATION"
	CodeConflict     Code = "CONFLICT"
	CodeRateLimited  Code = "RATE_LIMITED"
	CodeInternal     Code = "INTERNAL"
)

var statusByCode = map[Code]int{
	CodeNotFound:     http.StatusNotFound,
	CodeUnauthorized: http.StatusUnauthorized,
	CodeForbidden:    http.StatusForbidden,
	CodeValidation:   http.StatusBadRequest,
	CodeConflict:     http.StatusConflict,
	CodeRateLimited:  http.StatusTooManyRequests,
}

// HTTPStatus maps c to a response status. Unknown codes are 500.
func (c Code) HTTPStatus() int {
	if s, ok := statusByCode[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error carrying the same Code, so sentinels work with
// errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int { return e.Code.HTTPStatus() }

// WithDetails returns a copy carrying details.
func (e *Error) WithDetails(details any) *Error {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy wrapping err.
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.cause = err
	return &c
}

// Sentinels for errors.Is.
var (
	ErrNotFound    = &Error{Code: CodeNotFound, Message: "not found"}
	ErrForbidden   = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrValidation  = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict    = &Error{Code: CodeConflict, Message: "conflict"}
	ErrRateLimited = &Error{Code: CodeRateLimited, Message: "rate limited"}
)

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
// A nil error has no code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func newf(code Code, format string, args []any) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Code: code, Message: msg}
}

// NotFoundf reports a missing entity.
func NotFoundf(format string, args ...any) *Error { return newf(CodeNotFound, format, args) }

// Forbidden reports that the actor lacks the required role.
func Forbidden(msg string) *Error { return newf(CodeForbidden, msg, nil) }

// Forbiddenf is Forbidden with a formatted message.
func Forbiddenf(format string, args ...any) *Error { return newf(CodeForbidden, format, args) }

// Validation reports bad input.
func Validation(msg string) *Error { return newf(CodeValidation, msg, nil) }

// Validationf is Validation with a formatted message.
func Validationf(format string, args ...any) *Error { return newf(CodeValidation, format, args) }

// ValidationWithDetails carries per-field messages, keyed by field name.
func ValidationWithDetails(msg string, details any) *Error {
	return newf(CodeValidation, msg, nil).WithDetails(details)
}

// Conflict reports a uniqueness or state rule violation.
func Conflict(msg string) *Error { return newf(CodeConflict, msg, nil) }

// Conflictf is Conflict with a formatted message.
func Conflictf(format string, args ...any) *Error { return newf(CodeConflict, format, args) }

// RateLimited reports that the caller exceeded its request budget.
func RateLimited(msg string) *Error { return newf(CodeRateLimited, msg, nil) }

// Wrap attaches a code and message to err.
func Wrap(err error, code Code, msg string) *Error {
	return newf(code, msg, nil).WithCause(err)
}
