package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a domain failure. Transports map kinds to their own
// status codes.
type ErrorKind string

const (
	KindInvalidArgument ErrorKind = "invalid_argument"
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindPaymentRequired ErrorKind = "payment_required"
	KindForbidden       ErrorKind = "forbidden"
	KindNotFound        ErrorKind = "not_found"
	KindConflict        ErrorKind = "conflict"
	KindRateLimited     ErrorKind = "rate_limited"
	KindUpstream        ErrorKind = "upstream_failure"
	KindInternal        ErrorKind = "internal"
)

// Error is a classified domain error. Message is safe to show to callers;
// Hint, when set, tells them how to correct the request.
type Error struct {
	Kind       ErrorKind
	Message    string
	Hint       string
	RetryAfter time.Duration // set for KindRateLimited
}

func (e *Error) Error() string { return e.Message }

// WithHint returns a copy of e carrying the given corrective hint.
func (e *Error) WithHint(hint string) *Error {
	c := *e
	c.Hint = hint
	return &c
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...any) *Error {
	return newError(KindInvalidArgument, format, args...)
}

func Unauthenticated(format string, args ...any) *Error {
	return newError(KindUnauthenticated, format, args...)
}

func PaymentRequired(format string, args ...any) *Error {
	return newError(KindPaymentRequired, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newError(KindForbidden, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

func Upstream(format string, args ...any) *Error {
	return newError(KindUpstream, format, args...)
}

// RateLimited returns a KindRateLimited error carrying the exact wait.
func RateLimited(retryAfter time.Duration, format string, args ...any) *Error {
	e := newError(KindRateLimited, format, args...)
	e.RetryAfter = retryAfter
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
