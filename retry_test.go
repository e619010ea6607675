package courier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattiq/courier/internal/core"
)

func TestRetryManager_DelayGrowsExponentially(t *testing.T) {
	rm := NewRetryManager(RetryConfig{
		Enabled:      true,
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       false,
	})

	assert.Equal(t, 100*time.Millisecond, rm.Delay(1))
	assert.Equal(t, 200*time.Millisecond, rm.Delay(2))
	assert.Equal(t, 400*time.Millisecond, rm.Delay(3))
}

func TestRetryManager_DelayCapsAtMax(t *testing.T) {
	rm := NewRetryManager(RetryConfig{
		Enabled:      true,
		MaxAttempts:  10,
		InitialDelay: time.Second,
		MaxDelay:     3 * time.Second,
		Multiplier:   2.0,
		Jitter:       false,
	})

	assert.Equal(t, 3*time.Second, rm.Delay(5))
}

func TestRetryManager_JitterStaysWithinBound(t *testing.T) {
	rm := NewRetryManager(RetryConfig{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	})

	for i := 0; i < 20; i++ {
		d := rm.Delay(1)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 1100*time.Millisecond)
	}
}

func TestRetryManager_RetriesUntilSuccess(t *testing.T) {
	rm := NewRetryManager(RetryConfig{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	})

	calls := 0
	err := rm.Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return core.NewRetryableProviderError("resend", "SEND_FAILED", "transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryManager_StopsOnPermanentError(t *testing.T) {
	rm := NewRetryManager(RetryConfig{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	})

	calls := 0
	permanent := core.NewProviderError("resend", "REJECTED", "bad recipient")
	err := rm.Retry(context.Background(), func() error {
		calls++
		return permanent
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, permanent, err)
}

func TestRetryManager_ExhaustsAttempts(t *testing.T) {
	rm := NewRetryManager(RetryConfig{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	})

	calls := 0
	err := rm.Retry(context.Background(), func() error {
		calls++
		return core.NewRetryableProviderError("resend", "SEND_FAILED", "still down")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryManager_ContextCancellation(t *testing.T) {
	rm := NewRetryManager(RetryConfig{
		Enabled:      true,
		MaxAttempts:  5,
		InitialDelay: time.Minute,
		MaxDelay:     time.Hour,
		Multiplier:   2.0,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := rm.Retry(ctx, func() error {
		return core.NewRetryableProviderError("resend", "SEND_FAILED", "down")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryManager_DisabledRunsOnce(t *testing.T) {
	rm := NewRetryManager(RetryConfig{Enabled: false})

	calls := 0
	_ = rm.Retry(context.Background(), func() error {
		calls++
		return core.NewRetryableProviderError("resend", "SEND_FAILED", "down")
	})

	assert.Equal(t, 1, calls)
}

func TestRateLimiter_BurstThenLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		Enabled: true,
		Rate:    1,
		Period:  time.Hour,
		Burst:   2,
	})
	email := &Email{
		From: Address{Email: "a@example.com"},
		To:   []Address{{Email: "b@example.com"}},
	}
	ctx := context.Background()

	require.NoError(t, rl.Wait(ctx, email))
	require.NoError(t, rl.Wait(ctx, email))

	err := rl.Wait(ctx, email)
	require.Error(t, err)

	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Greater(t, rle.RetryAfter(), time.Duration(0))
}
