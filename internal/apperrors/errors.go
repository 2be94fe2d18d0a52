package apperrors

import (
	"fmt"
)

// Error is the structured error type for apidex.
// It provides rich context for error handling, logging, and caller presentation.
type Error struct {
	// Code is the unique error code (e.g., "ERR_402_QUERY_EMPTY").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Provider, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with Error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new Error with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an Error from an existing error.
// The error's message becomes the Error message.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// EmbeddingUnavailable marks the embedding provider as unreachable.
// The engine degrades to sparse-only retrieval on this error.
func EmbeddingUnavailable(cause error) *Error {
	return New(ErrCodeEmbeddingUnavailable, "embedding provider unavailable", cause)
}

// KeywordIndexUnavailable marks the keyword index as unreachable.
// The engine degrades to dense-only retrieval on this error.
func KeywordIndexUnavailable(cause error) *Error {
	return New(ErrCodeKeywordIndexUnavailable, "keyword index unavailable", cause)
}

// RetrievalUnavailable is fatal: both retrieval legs failed.
func RetrievalUnavailable(cause error) *Error {
	return New(ErrCodeRetrievalUnavailable, "both dense and sparse retrieval unavailable", cause)
}

// QueryEmpty rejects a blank query string.
func QueryEmpty() *Error {
	return New(ErrCodeQueryEmpty, "query must not be empty", nil)
}

// FilterTooComplex rejects a filter expression past the depth bound.
func FilterTooComplex(depth, maxDepth int) *Error {
	return New(ErrCodeFilterTooComplex,
		fmt.Sprintf("filter expression depth %d exceeds maximum %d", depth, maxDepth), nil)
}

// Cancelled reports a request abandoned via context cancellation.
func Cancelled(cause error) *Error {
	return New(ErrCodeCancelled, "search cancelled", cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is an Error with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ae, ok := err.(*Error); ok {
		return ae.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ae, ok := err.(*Error); ok {
		return ae.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an Error.
// Returns empty string if not an Error.
func GetCode(err error) string {
	if ae, ok := err.(*Error); ok {
		return ae.Code
	}
	return ""
}
