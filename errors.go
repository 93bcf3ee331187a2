package gatehouse

import (
	"errors"
	"net/http"
)

// ErrNotFound is returned by store implementations when a record does not
// exist (or is soft-deleted). It is a lookup sentinel, not part of the HTTP
// error taxonomy; flows translate it into a typed [Error].
var ErrNotFound = errors.New("record not found")

// Code identifies a failure class with a stable wire value and HTTP status.
type Code string

const (
	// CodeBadRequest is an invalid reference in otherwise well-formed input,
	// e.g. registering with an unknown role name.
	CodeBadRequest Code = "BAD_REQUEST"
	// CodeUnauthorized covers missing, invalid, expired, revoked, or replayed
	// credentials and tokens.
	CodeUnauthorized Code = "UNAUTHORIZED"
	// CodeForbidden is an authenticated caller with insufficient permission
	// or ownership.
	CodeForbidden Code = "FORBIDDEN"
	// CodeNotFound is a missing resource.
	CodeNotFound Code = "NOT_FOUND"
	// CodeConflict is a duplicate unique field, e.g. double registration.
	CodeConflict Code = "CONFLICT"
	// CodeTooManyRequests is rate-limit exhaustion.
	CodeTooManyRequests Code = "TOO_MANY_REQUESTS"
	// CodeValidation is malformed input, rejected above the auth core.
	CodeValidation Code = "VALIDATION_ERROR"
	// CodeInternal is an unexpected failure, including session-store
	// unavailability on the fail-closed refresh-consumption path.
	CodeInternal Code = "INTERNAL_SERVER_ERROR"
)

// Error is the typed failure surfaced to the HTTP layer. Message is safe to
// return to clients; the wrapped cause is not.
type Error struct {
	Code    Code
	Status  int
	Message string

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// E builds a typed error with the status implied by its code.
func E(code Code, message string) *Error {
	return &Error{Code: code, Status: statusFor(code), Message: message}
}

// Wrap builds a typed error carrying an underlying cause for logs and
// errors.Is/As chains. The cause never reaches the response body.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Status: statusFor(code), Message: message, cause: cause}
}

// StatusOf maps any error to an HTTP status. Untyped errors map to 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}

// CodeOf maps any error to a taxonomy code. Untyped errors map to INTERNAL.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// PublicMessage returns the client-safe message for an error. Untyped errors
// yield a generic message so internal detail never leaks into responses.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}

func statusFor(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
