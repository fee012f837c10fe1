// Package errors declares the closed taxonomy of client-facing error kinds
// produced anywhere in the request-processing pipeline. Every failure path
// is an explicit value produced by the component that detected it; nothing
// unwinds across layers as a panic or a generic error string.
package errors

import "fmt"

// Type identifies a client-facing error kind. The set is closed: every
// member here has a corresponding JSON-RPC error code assigned by
// pkg/rpc, and a Retryable verdict fixed by the table in spec §7.
type Type string

// The taxonomy from spec §7.
const (
	ErrInvalidParams         Type = "invalid-params"
	ErrUnauthorised          Type = "unauthorised"
	ErrForbidden             Type = "forbidden"
	ErrRateLimited           Type = "rate-limited"
	ErrNotFound              Type = "not-found"
	ErrConflict              Type = "conflict"
	ErrUpstreamUnavailable   Type = "upstream-unavailable"
	ErrUpstreamRejected      Type = "upstream-rejected"
	ErrCredentialUnavailable Type = "credential-unavailable"
	ErrTimeout               Type = "timeout"
	ErrInternal              Type = "internal"
)

// retryable mirrors the "Retryable" column of the §7 table.
var retryable = map[Type]bool{
	ErrInvalidParams:         false,
	ErrUnauthorised:          false,
	ErrForbidden:             false,
	ErrRateLimited:           true,
	ErrNotFound:              false,
	ErrConflict:              false,
	ErrUpstreamUnavailable:   true,
	ErrUpstreamRejected:      false,
	ErrCredentialUnavailable: true,
	ErrTimeout:               true,
	ErrInternal:              false,
}

// Error is the single error type produced by every component in the
// pipeline. Field is set when the failure names an offending parameter
// (validation errors); Detail carries the structured bits the JSON-RPC
// dispatcher surfaces in the error's "data" object.
type Error struct {
	Type    Type
	Message string
	Field   string
	Detail  map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap lets errors.Is/As see through to the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether a caller may retry a request that failed with
// this error, per the §7 table.
func (e *Error) Retryable() bool {
	return retryable[e.Type]
}

// New constructs an Error of the given kind.
func New(t Type, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause}
}

// NewInvalidParams constructs an invalid-params error naming the
// offending field, per §4.5's validation contract.
func NewInvalidParams(field, message string) *Error {
	return &Error{Type: ErrInvalidParams, Message: message, Field: field}
}

// NewUnauthorised constructs an unauthorised error.
func NewUnauthorised(message string) *Error {
	return &Error{Type: ErrUnauthorised, Message: message}
}

// NewForbidden constructs a forbidden error.
func NewForbidden(message string) *Error {
	return &Error{Type: ErrForbidden, Message: message}
}

// NewRateLimited constructs a rate-limited error carrying a retry-after
// hint in seconds, per §4.8.
func NewRateLimited(retryAfterSeconds int) *Error {
	return &Error{
		Type:    ErrRateLimited,
		Message: "rate limit exceeded",
		Detail:  map[string]any{"retry-after": retryAfterSeconds},
	}
}

// NewNotFound constructs a not-found error from an upstream 404.
func NewNotFound(message string) *Error {
	return &Error{Type: ErrNotFound, Message: message}
}

// NewConflict constructs a conflict error from an upstream 409 on a
// non-idempotent write.
func NewConflict(message string) *Error {
	return &Error{Type: ErrConflict, Message: message}
}

// NewUpstreamUnavailable constructs an upstream-unavailable error after
// the upstream client has exhausted its retry budget.
func NewUpstreamUnavailable(message string, cause error) *Error {
	return &Error{Type: ErrUpstreamUnavailable, Message: message, Cause: cause}
}

// NewUpstreamRejected constructs an upstream-rejected error for a 4xx
// response the client does not otherwise classify.
func NewUpstreamRejected(message string, status int, body string) *Error {
	return &Error{
		Type:    ErrUpstreamRejected,
		Message: message,
		Detail:  map[string]any{"upstream-status": status, "upstream-message": body},
	}
}

// NewCredentialUnavailable constructs a credential-unavailable error when
// the refresh path fails (lock contention exceeded, or refresh rejected).
func NewCredentialUnavailable(message string, cause error) *Error {
	return &Error{Type: ErrCredentialUnavailable, Message: message, Cause: cause}
}

// NewTimeout constructs a timeout error.
func NewTimeout(message string) *Error {
	return &Error{Type: ErrTimeout, Message: message}
}

// NewInternal constructs an internal error for unclassified programming
// failures.
func NewInternal(message string, cause error) *Error {
	return &Error{Type: ErrInternal, Message: message, Cause: cause}
}

// As extracts the *Error from a wrapped error chain.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	if ok {
		return e, true
	}
	type unwrapper interface{ Unwrap() error }
	for u, ok := err.(unwrapper); ok; u, ok = err.(unwrapper) {
		err = u.Unwrap()
		if e, ok := err.(*Error); ok {
			return e, true
		}
	}
	return nil, false
}
