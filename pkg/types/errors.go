package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a ledger error so front ends can translate it.
type ErrorKind string

// Error kinds. Anything that is not a *Error is an infrastructure failure.
const (
	KindValidation    ErrorKind = "ValidationError"    // Malformed or out-of-range input
	KindNotFound      ErrorKind = "NotFoundError"      // Referenced market or offer does not exist
	KindAuthorization ErrorKind = "AuthorizationError" // Actor lacks the right to act
	KindState         ErrorKind = "StateError"         // Illegal in the current lifecycle state
)

// Error represents a rejected ledger operation.
type Error struct {
	Kind    ErrorKind // Taxonomy bucket
	Op      string    // Operation that failed, e.g. "accept-offer"
	Message string    // Human-readable reason
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Message, e.Kind)
	}

	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrState) works
// regardless of operation or message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrValidation   = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "not found"}
	ErrUnauthorized = &Error{Kind: KindAuthorization, Message: "not authorized"}
	ErrState        = &Error{Kind: KindState, Message: "illegal state"}
)

// Validationf builds a ValidationError for op.
func Validationf(op string, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a NotFoundError for op.
func NotFoundf(op string, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Unauthorizedf builds an AuthorizationError for op.
func Unauthorizedf(op string, format string, args ...any) error {
	return &Error{Kind: KindAuthorization, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Statef builds a StateError for op.
func Statef(op string, format string, args ...any) error {
	return &Error{Kind: KindState, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" for
// infrastructure errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return ""
}
