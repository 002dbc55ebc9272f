package errors

import (
	"errors"
	"fmt"
)

// IndexError is the structured error type for idxstore.
// It provides rich context for error handling, logging, and user presentation.
type IndexError struct {
	// Code is the unique error code (e.g., "ERR_302_BACKEND_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *IndexError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with IndexError.
func (e *IndexError) Is(target error) bool {
	if t, ok := target.(*IndexError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *IndexError) WithDetail(key, value string) *IndexError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *IndexError) WithSuggestion(suggestion string) *IndexError {
	e.Suggestion = suggestion
	return e
}

// New creates a new IndexError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *IndexError {
	return &IndexError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an IndexError from an existing error.
// The error's message becomes the IndexError message.
func Wrap(code string, err error) *IndexError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinel values for errors.Is matching by code.
var (
	ErrBackendUnavailable = &IndexError{Code: ErrCodeBackendUnavailable}
	ErrBulkWriteFailed    = &IndexError{Code: ErrCodeBulkWriteFailed}
	ErrSearchFailed       = &IndexError{Code: ErrCodeSearchFailed}
	ErrIndexFailed        = &IndexError{Code: ErrCodeIndexFailed}
	ErrInvalidInput       = &IndexError{Code: ErrCodeInvalidInput}
)

// BackendUnavailable creates a connectivity error. The cause text is
// carried in the message.
func BackendUnavailable(message string, cause error) *IndexError {
	if cause != nil {
		message = fmt.Sprintf("%s: %v", message, cause)
	}
	return New(ErrCodeBackendUnavailable, message, cause).
		WithSuggestion("Check that the search backend is running and reachable")
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *IndexError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *IndexError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *IndexError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error chain holds an IndexError with Retryable set.
func IsRetryable(err error) bool {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an IndexError.
// Returns empty string if not an IndexError.
func GetCode(err error) string {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// GetCategory extracts the category from an IndexError.
// Returns empty string if not an IndexError.
func GetCategory(err error) Category {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Category
	}
	return ""
}
