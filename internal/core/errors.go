package core

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError represents a validation error with specific field information.
type ValidationError struct {
	// Field is the name of the field that failed validation.
	Field string

	// Message is the validation error message.
	Message string

	// Value is the invalid value (optional).
	Value interface{}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation error in %s: %s (value: %v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Is implements error matching for errors.Is.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// ProviderError represents an error from an email provider.
type ProviderError struct {
	// Provider is the name of the provider that generated the error.
	Provider string

	// Code is the provider-specific error code.
	Code string

	// Message is the error message from the provider.
	Message string

	// StatusCode is the HTTP status code (for HTTP-based providers).
	StatusCode int

	// IsRetryable indicates whether the error can be retried.
	IsRetryable bool

	// IsTemporary indicates whether the error is temporary.
	IsTemporary bool

	// Cause is the underlying error that caused this provider error.
	Cause error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s error [%s] (status: %d): %s",
			e.Provider, e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s error [%s]: %s", e.Provider, e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is.
func (e *ProviderError) Is(target error) bool {
	pe, ok := target.(*ProviderError)
	if !ok {
		return false
	}
	return e.Provider == pe.Provider && e.Code == pe.Code
}

// Retryable implements RetryableError for ProviderError.
func (e *ProviderError) Retryable() bool {
	return e.IsRetryable
}

// Temporary implements TemporaryError for ProviderError.
func (e *ProviderError) Temporary() bool {
	return e.IsTemporary
}

// QuotaError indicates a provider's send quota is exhausted for a window.
type QuotaError struct {
	// Provider is the provider whose quota ran out.
	Provider string

	// Window is the quota window that is exhausted.
	Window QuotaWindowKind

	// Used is the current counter value for the window.
	Used int64

	// Limit is the configured cap for the window.
	Limit int64

	// ResetsAt is when the window rolls over and the counter resets.
	ResetsAt time.Time
}

// Error implements the error interface.
func (e *QuotaError) Error() string {
	return fmt.Sprintf("provider %s %s quota exhausted (%d/%d, resets %s)",
		e.Provider, e.Window, e.Used, e.Limit, e.ResetsAt.Format(time.RFC3339))
}

// Retryable reports whether the send can be retried. Quota exhaustion is
// retryable on a different provider or after the window resets.
func (e *QuotaError) Retryable() bool {
	return true
}

// RetryAfter returns the time remaining until the window resets.
func (e *QuotaError) RetryAfter() time.Duration {
	d := time.Until(e.ResetsAt)
	if d < 0 {
		return 0
	}
	return d
}

// RetryableError interface indicates whether an error can be retried.
type RetryableError interface {
	Retryable() bool
}

// TemporaryError interface indicates whether an error is temporary.
type TemporaryError interface {
	Temporary() bool
}

// NewProviderError creates a new provider error.
func NewProviderError(provider, code, message string) *ProviderError {
	return &ProviderError{
		Provider:    provider,
		Code:        code,
		Message:     message,
		IsRetryable: false,
		IsTemporary: false,
	}
}

// NewRetryableProviderError creates a new retryable provider error.
func NewRetryableProviderError(provider, code, message string) *ProviderError {
	return &ProviderError{
		Provider:    provider,
		Code:        code,
		Message:     message,
		IsRetryable: true,
		IsTemporary: false,
	}
}

// NewTemporaryProviderError creates a new temporary provider error.
func NewTemporaryProviderError(provider, code, message string) *ProviderError {
	return &ProviderError{
		Provider:    provider,
		Code:        code,
		Message:     message,
		IsRetryable: true,
		IsTemporary: true,
	}
}

// NewStatusProviderError creates a provider error from an HTTP status code,
// classifying 429 and 5xx responses as retryable.
func NewStatusProviderError(provider, code, message string, status int) *ProviderError {
	return &ProviderError{
		Provider:    provider,
		Code:        code,
		Message:     message,
		StatusCode:  status,
		IsRetryable: status == 429 || status >= 500,
		IsTemporary: status == 429 || status == 503,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewValidationErrorWithValue creates a new validation error with a value.
func NewValidationErrorWithValue(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if re, ok := err.(RetryableError); ok {
		return re.Retryable()
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.IsRetryable
	}

	var qe *QuotaError
	if errors.As(err, &qe) {
		return true
	}

	return false
}

// IsTemporary checks if an error is temporary.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}

	if te, ok := err.(TemporaryError); ok {
		return te.Temporary()
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.IsTemporary
	}

	return false
}

// GetRetryAfter extracts retry delay from an error if available.
func GetRetryAfter(err error) time.Duration {
	if err == nil {
		return 0
	}

	if rateLimited, ok := err.(interface{ RetryAfter() time.Duration }); ok {
		return rateLimited.RetryAfter()
	}

	return 0
}
