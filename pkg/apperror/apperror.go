// Package apperror defines the closed set of application error kinds.
//
// Errors are constructed at the point of failure, travel unmodified up the
// call chain and are serialized exactly once by the HTTP error middleware.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/oksasatya/anaqa-user-service/pkg/validation"
)

// Kind tags an Error. Consumers switch on Kind, never on Go type identity.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Status is the HTTP-equivalent status code of the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is the tagged application error value.
type Error struct {
	Kind        Kind
	Message     string
	StatusCode  int
	Operational bool
	Context     map[string]any
	Fields      []validation.FieldError
	Cause       error
	Stack       string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// WithContext returns e with key=value merged into its context map.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	e.Context[key] = value
	return e
}

// New builds an error of the given kind. Only KindInternal is non-operational.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:        kind,
		Message:     message,
		StatusCode:  kind.Status(),
		Operational: kind != KindInternal,
		Stack:       string(debug.Stack()),
	}
}

// Validation reports malformed input together with every field violation.
func Validation(message string, fields ...validation.FieldError) *Error {
	e := New(KindValidation, message)
	e.Fields = fields
	return e
}

// Unauthorized reports missing or invalid credentials.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Unauthorized"
	}
	return New(KindUnauthorized, message)
}

// Forbidden reports an authenticated caller without permission.
func Forbidden(message string) *Error {
	if message == "" {
		message = "Forbidden"
	}
	return New(KindForbidden, message)
}

// NotFound reports an absent resource. With an identifier the message reads
// "<resource> with identifier '<id>' not found".
func NotFound(resource string, identifier ...string) *Error {
	msg := resource + " not found"
	if len(identifier) > 0 && identifier[0] != "" {
		msg = fmt.Sprintf("%s with identifier '%s' not found", resource, identifier[0])
	}
	return New(KindNotFound, msg)
}

// Conflict reports a uniqueness or state conflict.
func Conflict(message string, context map[string]any) *Error {
	e := New(KindConflict, message)
	e.Context = context
	return e
}

// RateLimited reports a client over its request budget.
func RateLimited(message string, retryAfterSeconds int) *Error {
	e := New(KindRateLimited, message)
	if retryAfterSeconds > 0 {
		e.WithContext("retryAfterSeconds", retryAfterSeconds)
	}
	return e
}

// Internal wraps an unclassified defect. It is never operational.
func Internal(err error) *Error {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	e := New(KindInternal, msg)
	e.Cause = err
	return e
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == kind
}

// From returns err as an *Error, classifying foreign errors as internal.
func From(err error) *Error {
	if ae, ok := As(err); ok {
		return ae
	}
	return Internal(err)
}
