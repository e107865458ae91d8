// Package apierr defines the error kinds surfaced across the catalog,
// orchestrator, and cache layers: NotFound, InvalidArgument, Conflict,
// and Internal, each wrappable with errors.Is/errors.As.
package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies a user-facing failure.
type Kind string

const (
	KindNotFound        Kind = "NOT_FOUND"
	KindInvalidArgument Kind = "INVALID_ARGUMENT"
	KindConflict        Kind = "CONFLICT"
	KindInternal        Kind = "INTERNAL"
)

// Error carries a Kind, a human-readable message, and an optional
// wrapped cause.
type Error struct {
	Kind     Kind
	Message  string
	Guidance string
	cause    error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is allows errors.Is(err, apierr.NotFound) style sentinel comparison
// by matching on Kind rather than identity.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func newErr(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds an Error of kind NotFound.
func NotFound(format string, args ...any) *Error {
	return newErr(KindNotFound, format, args...)
}

// InvalidArgument builds an Error of kind InvalidArgument.
func InvalidArgument(format string, args ...any) *Error {
	return newErr(KindInvalidArgument, format, args...)
}

// Conflict builds an Error of kind Conflict.
func Conflict(format string, args ...any) *Error {
	return newErr(KindConflict, format, args...)
}

// Internal wraps cause as an Error of kind Internal.
func Internal(cause error, format string, args ...any) *Error {
	e := newErr(KindInternal, format, args...)
	e.cause = cause
	return e
}

// WithGuidance attaches operator-facing guidance text.
func (e *Error) WithGuidance(g string) *Error {
	e.Guidance = g
	return e
}

// sentinels for errors.Is(err, apierr.ErrNotFound) comparisons against a
// bare kind without a message.
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrInternal        = &Error{Kind: KindInternal}
)
