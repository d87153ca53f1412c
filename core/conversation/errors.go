package conversation

import (
	"errors"
	"fmt"
)

// Kind classifies why a conversation run stopped early.
type Kind string

const (
	// KindUnknownInput marks a message that arrived with no pending step.
	KindUnknownInput Kind = "unknown_input"
	// KindCancelled marks an explicit cancellation by the user.
	KindCancelled Kind = "cancelled"
	// KindExpired marks a pending step that outlived the registry TTL.
	KindExpired Kind = "expired"
	// KindSuperseded marks a run replaced by a newer run of the same session.
	KindSuperseded Kind = "superseded"
	// KindMalformedReference marks a reply that could not be resolved to an entity.
	KindMalformedReference Kind = "malformed_reference"
	// KindPersistence marks a failing store call.
	KindPersistence Kind = "persistence"
	// KindInvalidState marks an operation not allowed for the entity's current state.
	KindInvalidState Kind = "invalid_state"
)

// Error is the error type produced by step callbacks and the dispatcher.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

var (
	ErrUnknownInput       = &Error{Kind: KindUnknownInput}
	ErrCancelled          = &Error{Kind: KindCancelled}
	ErrExpired            = &Error{Kind: KindExpired}
	ErrSuperseded         = &Error{Kind: KindSuperseded}
	ErrMalformedReference = &Error{Kind: KindMalformedReference}
	ErrPersistence        = &Error{Kind: KindPersistence}
	ErrInvalidState       = &Error{Kind: KindInvalidState}
)

func (e *Error) Error() string {
	msg := "conversation: " + string(e.Kind)
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrCancelled)
// holds for every cancellation regardless of Op and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Code exposes the kind for handler summaries.
func (e *Error) Code() string { return string(e.Kind) }

// Fail builds an error of the given kind.
func Fail(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Failf builds an error of the given kind with a formatted cause.
func Failf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Cancel is returned by a callback to stop its run without a successor.
func Cancel(op string) error {
	return &Error{Kind: KindCancelled, Op: op}
}

// KindOf reports the kind of err, or "" for errors not produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
