package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across stores and the engine.
var (
	// ErrAlreadyExists is returned when a task name collides with an existing
	// node. Callers treat it as idempotent success and fetch the existing node.
	ErrAlreadyExists = errors.New("already exists")

	// ErrTerminalState is returned when a transition targets a node that has
	// already reached a terminal status.
	ErrTerminalState = errors.New("task is in a terminal state")
)

// ValidationError marks a structurally invalid payload. It is never retried
// and never enqueued.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// TransientError wraps a failure that is expected to succeed on retry, such as
// a network error, timeout, or 5xx from the calendar provider.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as retryable.
func NewTransientError(err error) *TransientError {
	return &TransientError{Err: err}
}

// NotFoundError reports a missing entity by kind and key.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(kind, key string) *NotFoundError {
	return &NotFoundError{Kind: kind, Key: key}
}

// IsRetryable reports whether err should be handed back to the queue's
// backoff policy instead of failing the task permanently.
func IsRetryable(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}
