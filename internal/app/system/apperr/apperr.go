// Package apperr defines the typed error taxonomy shared by the policy,
// store, and handler layers.
//
// Every error that crosses a layer boundary carries one of the codes below.
// Handlers map codes to HTTP statuses in one place; messages are stable and
// never include another user's data or reveal whether a hidden resource
// exists. In particular, a denied update/delete of a resource the actor
// cannot see is reported as NotFound, not Forbidden, so callers cannot
// enumerate records they have no access to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for callers and for the HTTP layer.
type Code string

const (
	// Unauthenticated means no valid session or token was presented.
	Unauthenticated Code = "unauthenticated"
	// Forbidden means the actor is known but policy denies the action.
	Forbidden Code = "forbidden"
	// NotFound covers both absent resources and resources excluded by the
	// caller's visibility scope; the two are intentionally indistinguishable.
	NotFound Code = "not_found"
	// Conflict covers duplicate-email and duplicate-active-alert violations.
	Conflict Code = "conflict"
	// Invalid means a required field is missing or malformed.
	Invalid Code = "invalid"
	// Unavailable wraps document-store I/O failures. Not retried here.
	Unavailable Code = "unavailable"
)

// Error is the concrete error type used across the service.
type Error struct {
	Code    Code
	Message string
	Field   string // set for Invalid errors with field-level detail
	err     error  // wrapped cause, if any
}

// E constructs an Error with the given code and message.
func E(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Field constructs an Invalid error with field-level detail.
func Field(field, message string) *Error {
	return &Error{Code: Invalid, Message: message, Field: field}
}

// Wrap constructs an Error that wraps an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// Is makes errors.Is match on code equality, so sentinel errors like
// userstore.ErrDuplicateEmail compare correctly through wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && (t.Message == "" || t.Message == e.Message)
}

// CodeOf extracts the Code from err, or Unavailable for unclassified errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unavailable
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps an error's code to its HTTP status.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Invalid:
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

// Public returns the message safe to show a caller. Unclassified errors get
// a generic message so internal details never leak.
func Public(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "service temporarily unavailable"
}
