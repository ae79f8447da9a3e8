// Package apperrors provides the error taxonomy shared by the portal services.
//
// Every failure a caller can act on carries a Kind. Transport layers map kinds to
// status codes; services only decide which kind applies.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// KindUnauthenticated means no valid session accompanied the request.
	KindUnauthenticated Kind = "UNAUTHENTICATED"
	// KindForbidden means the caller is authenticated but not allowed.
	KindForbidden Kind = "FORBIDDEN"
	// KindNotFound covers unknown ids and records the caller may not see.
	KindNotFound Kind = "NOT_FOUND"
	// KindConflict means a record with the same identity already exists.
	KindConflict Kind = "CONFLICT"
	// KindValidation means the input was malformed.
	KindValidation Kind = "VALIDATION"
	// KindInvalidTransition means the plugin is not in a valid source state.
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	// KindInternal wraps infrastructure failures.
	KindInternal Kind = "INTERNAL"
)

// Error is a domain error with a kind and a caller-facing message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind && (t.Message == "" || t.Message == e.Message)
	}
	return false
}

// New creates a domain error with a kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-facing message of err.
// Internal errors never expose their cause.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "Internal server error"
}

// Common sentinel errors. Compare with errors.Is, which matches on kind.
var (
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
)

// Unauthenticated returns the standard unauthenticated error.
func Unauthenticated() *Error { return New(KindUnauthenticated, "Unauthorized") }

// Forbidden returns the standard forbidden error.
func Forbidden() *Error { return New(KindForbidden, "Forbidden") }

// NotFound returns a not-found error for the named entity, e.g. "Plugin not found".
func NotFound(entity string) *Error { return Newf(KindNotFound, "%s not found", entity) }

// Conflict returns a conflict error for the named entity, e.g. "Plugin already exists".
func Conflict(entity string) *Error { return Newf(KindConflict, "%s already exists", entity) }

// Validation returns a validation error.
func Validation(format string, args ...interface{}) *Error {
	return Newf(KindValidation, format, args...)
}

// Internal wraps an infrastructure failure.
func Internal(message string, cause error) *Error { return Wrap(KindInternal, message, cause) }

// IsUnauthenticated reports whether err is an unauthenticated error.
func IsUnauthenticated(err error) bool { return KindOf(err) == KindUnauthenticated }

// IsForbidden reports whether err is a forbidden error.
func IsForbidden(err error) bool { return KindOf(err) == KindForbidden }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsInvalidTransition reports whether err is an invalid state transition.
func IsInvalidTransition(err error) bool { return KindOf(err) == KindInvalidTransition }
