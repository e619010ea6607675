package courier

import (
	"errors"
	"fmt"
	"time"
)

// Predefined sentinel errors for common cases.
var (
	// ErrInvalidEmail indicates an invalid email address format.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrTemplateNotFound indicates a requested template was not found.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrProviderTimeout indicates a provider operation timed out.
	ErrProviderTimeout = errors.New("provider timeout")

	// ErrRateLimited indicates the operation was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrCircuitOpen indicates a provider's circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrQuotaExhausted indicates a provider's send quota is used up.
	ErrQuotaExhausted = errors.New("quota exhausted")

	// ErrNoProviderAvailable indicates every configured provider was
	// skipped (open circuit or exhausted quota) or failed.
	ErrNoProviderAvailable = errors.New("no provider available")

	// ErrOutboxDisabled indicates Enqueue was called without an outbox.
	ErrOutboxDisabled = errors.New("outbox not configured")

	// ErrInvalidConfiguration indicates invalid configuration.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = errors.New("client closed")
)

// RouteError wraps the last provider failure seen while walking the
// provider list, together with how many providers were considered.
type RouteError struct {
	// Attempted is the number of providers that were tried.
	Attempted int

	// Skipped is the number of providers skipped without an attempt
	// (open circuit, exhausted quota).
	Skipped int

	// LastErr is the most recent provider failure, if any provider was
	// actually attempted.
	LastErr error
}

// Error implements the error interface.
func (e *RouteError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("no provider available (attempted %d, skipped %d): %v",
			e.Attempted, e.Skipped, e.LastErr)
	}
	return fmt.Sprintf("no provider available (attempted %d, skipped %d)", e.Attempted, e.Skipped)
}

// Unwrap returns the last provider failure.
func (e *RouteError) Unwrap() error {
	return e.LastErr
}

// Is matches RouteError against ErrNoProviderAvailable.
func (e *RouteError) Is(target error) bool {
	return target == ErrNoProviderAvailable
}

// Retryable reports whether delivery may succeed later. Routing failures
// are retryable: circuits reopen and quota windows reset.
func (e *RouteError) Retryable() bool {
	return true
}

// TemplateError represents an error in template processing.
type TemplateError struct {
	// Template is the name of the template that caused the error.
	Template string

	// Operation is the operation that failed (e.g., "parse", "render").
	Operation string

	// Message is the error message.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error in %s during %s: %s", e.Template, e.Operation, e.Message)
}

// Unwrap returns the underlying error.
func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// RateLimitError represents a rate limiting error with retry information.
type RateLimitError struct {
	// Message is the error message.
	Message string

	// RetryAfterDuration indicates when the operation can be retried.
	RetryAfterDuration time.Duration

	// Limit is the rate limit that was exceeded.
	Limit int

	// Window is the time window for the rate limit.
	Window time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %s (retry after %v)", e.Message, e.RetryAfterDuration)
}

// RetryAfter returns when the operation can be retried.
func (e *RateLimitError) RetryAfter() time.Duration {
	return e.RetryAfterDuration
}

// BatchError represents errors that occurred during batch operations.
type BatchError struct {
	// Message is the overall error message.
	Message string

	// Errors contains individual errors for each failed item.
	Errors []BatchItemError

	// Total is the total number of items in the batch.
	Total int

	// Failed is the number of items that failed.
	Failed int
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	return fmt.Sprintf("batch error: %s (%d/%d failed)", e.Message, e.Failed, e.Total)
}

// BatchItemError represents an error for a specific item in a batch.
type BatchItemError struct {
	// Index is the position of the item in the batch.
	Index int

	// Error is the error that occurred for this item.
	Error error
}

// NewTemplateError creates a new template error.
func NewTemplateError(template, operation, message string, cause error) *TemplateError {
	return &TemplateError{
		Template:  template,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// NewRateLimitError creates a new rate limit error.
func NewRateLimitError(message string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		Message:            message,
		RetryAfterDuration: retryAfter,
	}
}
