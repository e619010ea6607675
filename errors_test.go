package courier

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattiq/courier/internal/core"
)

func TestRouteError_MatchesSentinel(t *testing.T) {
	err := &RouteError{Attempted: 1, Skipped: 2, LastErr: errors.New("boom")}

	assert.ErrorIs(t, err, ErrNoProviderAvailable)
	assert.ErrorIs(t, fmt.Errorf("send failed: %w", err), ErrNoProviderAvailable)
	assert.Contains(t, err.Error(), "attempted 1")
	assert.Contains(t, err.Error(), "skipped 2")
}

func TestRouteError_UnwrapsLastFailure(t *testing.T) {
	inner := core.NewRetryableProviderError("resend", "SEND_FAILED", "down")
	err := &RouteError{Attempted: 1, LastErr: inner}

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "resend", pe.Provider)
}

func TestStatusProviderErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
		temporary bool
	}{
		{"bad request", 400, false, false},
		{"unauthorized", 401, false, false},
		{"too many requests", 429, true, true},
		{"server error", 500, true, false},
		{"bad gateway", 502, true, false},
		{"service unavailable", 503, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := core.NewStatusProviderError("sendgrid", "HTTP_ERROR", "upstream error", tt.status)
			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.Equal(t, tt.temporary, IsTemporary(err))
		})
	}
}

func TestRateLimitError_RetryAfter(t *testing.T) {
	err := NewRateLimitError("too fast", 30*time.Second)

	assert.Equal(t, 30*time.Second, GetRetryAfter(err))
	assert.Contains(t, err.Error(), "retry after")
}

func TestTemplateError_Unwrap(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := NewTemplateError("welcome", "parse", "syntax error", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "welcome")
	assert.Contains(t, err.Error(), "parse")
}

func TestValidationError_Message(t *testing.T) {
	err := NewValidationError("to", "at least one recipient required")
	assert.Contains(t, err.Error(), "to")
	assert.Contains(t, err.Error(), "recipient")
	assert.False(t, IsRetryable(err))
}
