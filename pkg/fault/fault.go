// Package fault defines the error taxonomy shared by the lifecycle, the
// property handlers, and the authorization layer. Errors carry an HTTP-ish
// status code so trigger adapters can translate them without inspecting
// messages.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a framework error.
type Kind string

const (
	KindConfiguration  Kind = "configuration"
	KindAuthorization  Kind = "authorization"
	KindForbidden      Kind = "forbidden"
	KindNotImplemented Kind = "not_implemented"
	KindInternal       Kind = "internal"
)

// Error is the framework error type. Code follows HTTP status semantics.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	cause   error
	drop    bool
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// Configuration reports missing or invalid settings, including unparseable
// JSON-declared objects.
func Configuration(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Code: 500, Message: fmt.Sprintf(format, args...)}
}

// Authorization reports an unregistered resource or application.
func Authorization(format string, args ...any) *Error {
	return &Error{Kind: KindAuthorization, Code: 401, Message: fmt.Sprintf(format, args...)}
}

// Forbidden reports a denied permission check.
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Code: 403, Message: fmt.Sprintf(format, args...)}
}

// NotImplemented reports an operation the adapter refuses to handle.
func NotImplemented(op string) *Error {
	return &Error{Kind: KindNotImplemented, Code: 501, Message: fmt.Sprintf("%s is not implemented", op)}
}

// Wrap converts a non-framework error into an internal Error with a generic
// message. Framework errors pass through unchanged.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{Kind: KindInternal, Code: 500, Message: "unhandled error", cause: err}
}

// WithCause attaches an underlying error.
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

// WithDrop marks an error as ignorable: the completion callback should be
// invoked with no payload despite the failure (expired messages and similar).
func WithDrop(err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		fe.drop = true
		return err
	}
	we := Wrap(err).(*Error)
	we.drop = true
	return we
}

// IsDrop reports whether the error carries the drop flag.
func IsDrop(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.drop
}

// CodeOf returns the status code carried by a framework error, or 500.
func CodeOf(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return 500
}

func isKind(err error, kind Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool { return isKind(err, KindConfiguration) }

// IsAuthorization reports whether err is an authorization error.
func IsAuthorization(err error) bool { return isKind(err, KindAuthorization) }

// IsForbidden reports whether err is a forbidden error.
func IsForbidden(err error) bool { return isKind(err, KindForbidden) }

// IsNotImplemented reports whether err is a not-implemented error.
func IsNotImplemented(err error) bool { return isKind(err, KindNotImplemented) }
