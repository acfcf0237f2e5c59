// Package errors provides structured, coded errors for the retrieval core.
// Every failure mode in the pipeline maps to a stable code so that callers
// can implement policy (retry, degrade, abort) without string matching.
package errors

import (
	"fmt"
)

// CoreError is the structured error type used throughout the engine.
type CoreError struct {
	// Code is the unique error code (e.g. "ERR_401_VECTOR_BACKEND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the subsystem the error originated in.
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error, if any.
	Cause error

	// Retryable indicates whether the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *CoreError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *CoreError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code, enabling errors.Is with sentinel CoreErrors.
func (e *CoreError) Is(target error) bool {
	if t, ok := target.(*CoreError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error. Returns the error for chaining.
func (e *CoreError) WithDetail(key, value string) *CoreError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a CoreError with the given code and message.
// Category, severity, and the retryable flag are derived from the code.
func New(code string, message string, cause error) *CoreError {
	return &CoreError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a CoreError from an existing error, preserving it as the cause.
func Wrap(code string, err error) *CoreError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// NotReady creates the retryable error returned to requests that arrive
// before the warm-up phase has completed.
func NotReady() *CoreError {
	return New(ErrCodeNotReady, "retrieval engine is warming up, retry shortly", nil)
}

// VectorBackendError creates the error recorded when the embedding service or
// vector store is unavailable. It is surfaced as a degradation flag, never to
// the end user.
func VectorBackendError(message string, cause error) *CoreError {
	return New(ErrCodeVectorBackend, message, cause)
}

// IsRetryable reports whether err is a retryable CoreError.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := err.(*CoreError); ok {
		return ce.Retryable
	}
	return false
}

// GetCode extracts the error code, or "" if err is not a CoreError.
func GetCode(err error) string {
	if ce, ok := err.(*CoreError); ok {
		return ce.Code
	}
	return ""
}
