// Package apperr defines the coded error type shared by services and HTTP handlers.
package apperr

import (
	"errors"
	"net/http"
)

// Code classifies an error for the caller.
type Code string

const (
	CodeInvalid         Code = "INVALID_ARGUMENT"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeRateLimited     Code = "RATE_LIMITED"
	CodePaymentRequired Code = "PAYMENT_REQUIRED"
	CodeUnavailable     Code = "UNAVAILABLE"
	CodeInternal        Code = "INTERNAL"
)

// HTTPStatus maps a code to the response status written by handlers.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalid:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodePaymentRequired:
		return http.StatusPaymentRequired
	default:
		// Upstream outages surface as 500 to keep parity with the function endpoints.
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a caller-safe message.
type Error struct {
	Code    Code
	Message string // safe to return to the caller
	Cause   error  // logged, never returned
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by code so callers can write errors.Is(err, apperr.NotFound("")).
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error that keeps the underlying cause for logging.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func Invalid(message string) *Error         { return New(CodeInvalid, message) }
func Unauthorized(message string) *Error    { return New(CodeUnauthorized, message) }
func Forbidden(message string) *Error       { return New(CodeForbidden, message) }
func NotFound(message string) *Error        { return New(CodeNotFound, message) }
func Conflict(message string) *Error        { return New(CodeConflict, message) }
func RateLimited(message string) *Error     { return New(CodeRateLimited, message) }
func PaymentRequired(message string) *Error { return New(CodePaymentRequired, message) }

// Internal wraps an unexpected failure behind a generic "failed to ..." message.
func Internal(message string, cause error) *Error {
	return Wrap(CodeInternal, message, cause)
}

// Unavailable wraps an upstream dependency failure.
func Unavailable(message string, cause error) *Error {
	return Wrap(CodeUnavailable, message, cause)
}

// CodeOf returns the code of err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the caller-safe message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}
