package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable, machine-readable category of a domain error.
type ErrorKind string

const (
	KindValidation               ErrorKind = "VALIDATION_ERROR"
	KindNotFound                 ErrorKind = "NOT_FOUND"
	KindCycleDetected            ErrorKind = "CYCLE_DETECTED"
	KindInvalidDepth             ErrorKind = "INVALID_DEPTH"
	KindAlreadyExists            ErrorKind = "ALREADY_EXISTS"
	KindDuplicateOrder           ErrorKind = "DUPLICATE_ORDER"
	KindConflictingPendingIntent ErrorKind = "CONFLICTING_PENDING_INTENT"
	KindSignatureInvalid         ErrorKind = "SIGNATURE_INVALID"
	KindGatewayUnavailable       ErrorKind = "GATEWAY_UNAVAILABLE"
	KindIllegalTransition        ErrorKind = "ILLEGAL_TRANSITION"
	KindInternal                 ErrorKind = "INTERNAL"
)

// Error carries a stable kind plus a human-readable message.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation               = &Error{Kind: KindValidation}
	ErrNotFound                 = &Error{Kind: KindNotFound}
	ErrCycleDetected            = &Error{Kind: KindCycleDetected}
	ErrInvalidDepth             = &Error{Kind: KindInvalidDepth}
	ErrAlreadyExists            = &Error{Kind: KindAlreadyExists}
	ErrDuplicateOrder           = &Error{Kind: KindDuplicateOrder}
	ErrConflictingPendingIntent = &Error{Kind: KindConflictingPendingIntent}
	ErrSignatureInvalid         = &Error{Kind: KindSignatureInvalid}
	ErrGatewayUnavailable       = &Error{Kind: KindGatewayUnavailable}
	ErrIllegalTransition        = &Error{Kind: KindIllegalTransition}
)

// Errorf builds a domain error of the given kind.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a domain error of the given kind around a cause.
func Wrap(kind ErrorKind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the kind of err, or KindInternal for non-domain errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// MessageOf returns the human-readable part of a domain error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
