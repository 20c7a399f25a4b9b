package model

import "fmt"

// ErrorKind is the closed error taxonomy from spec.md §7.
type ErrorKind string

const (
	ErrValidation        ErrorKind = "ValidationError"
	ErrAuth              ErrorKind = "AuthError"
	ErrTransientExternal ErrorKind = "TransientExternalError"
	ErrStorage           ErrorKind = "StorageError"
	ErrStalledJob        ErrorKind = "StalledJob"
	ErrRuleBug           ErrorKind = "RuleBug"
	ErrDownstream        ErrorKind = "DownstreamError"
)

// DomainError is the single error type the orchestrator, queue,
// evidence builder, and SSE hub construct and inspect. It realizes
// spec.md §9's "replace thrown errors with result sums" directive as
// an ordinary Go error wrapping a typed kind, inspected via errors.As.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the queue's attempt policy should requeue
// a job that failed with this error kind.
func (e *DomainError) Retryable() bool {
	switch e.Kind {
	case ErrTransientExternal, ErrStalledJob:
		return true
	default:
		return false
	}
}

// NewDomainError constructs a DomainError, optionally wrapping cause.
func NewDomainError(kind ErrorKind, message string, cause error) *DomainError {
	return &DomainError{Kind: kind, Message: message, Cause: cause}
}
