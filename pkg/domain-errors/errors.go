// Package domainerrors defines the coded error type shared by services and
// transport. Services create or wrap errors with a Code; the HTTP layer maps
// codes to status codes without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for transport mapping and caller retry
// decisions.
type Code string

const (
	// CodeValidation marks missing or malformed input. Fixable by the caller.
	CodeValidation Code = "validation"
	// CodeNotFound marks an unknown record or resource.
	CodeNotFound Code = "not_found"
	// CodeConflict marks a uniqueness or optimistic-concurrency conflict.
	// Retryable after re-reading current state.
	CodeConflict Code = "conflict"
	// CodeInvalidState marks an operation not permitted for the record's
	// current status. Deterministic rejection, never retryable as-is.
	CodeInvalidState Code = "invalid_state"
	// CodeInvalidTransition marks a status transition outside the kind's
	// transition table. Deterministic rejection, never retryable as-is.
	CodeInvalidTransition Code = "invalid_transition"
	// CodeUnauthorized marks a missing or invalid principal.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks an authenticated principal lacking the role.
	CodeForbidden Code = "forbidden"
	// CodeTimeout marks a deadline hit on a store or downstream call.
	// Transient; callers may retry with backoff.
	CodeTimeout Code = "timeout"
	// CodeAuditFailure marks a failed audit append. The enclosing mutation
	// must have been rolled back; surfacing this is mandatory.
	CodeAuditFailure Code = "audit_failure"
	// CodeInternal marks everything else.
	CodeInternal Code = "internal"
)

// Error carries a code, a caller-facing message, and an optional cause.
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

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. If err is nil,
// Wrap returns nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or CodeInternal if err is not a
// domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the caller-facing message, or a generic one for
// non-domain errors so internals never leak to clients.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeInvalidState, CodeInvalidTransition:
		return http.StatusUnprocessableEntity
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeAuditFailure, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
