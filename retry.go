package courier

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"

	"github.com/lattiq/courier/internal/core"
)

// RetryManager handles retry logic for failed operations.
type RetryManager struct {
	config RetryConfig
}

// NewRetryManager creates a new retry manager with the given configuration.
func NewRetryManager(config RetryConfig) *RetryManager {
	return &RetryManager{
		config: config,
	}
}

// Retry executes the given function with retry logic.
func (r *RetryManager) Retry(ctx context.Context, fn func() error) error {
	if !r.config.Enabled {
		return fn()
	}

	var lastErr error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		// Don't retry if error is not retryable
		if !core.IsRetryable(err) {
			return err
		}

		// Don't sleep after the last attempt
		if attempt == r.config.MaxAttempts {
			break
		}

		delay := r.Delay(attempt)

		// Honor provider-supplied retry hints over computed backoff
		if retryAfter := core.GetRetryAfter(err); retryAfter > 0 {
			delay = retryAfter
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// Delay calculates the backoff delay for the given attempt number.
func (r *RetryManager) Delay(attempt int) time.Duration {
	delay := time.Duration(float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1)))

	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	if r.config.Jitter {
		// Add up to 10% jitter using cryptographically secure random
		jitterRange := float64(delay) * 0.1
		maxJitter := int64(jitterRange)
		if maxJitter > 0 {
			jitterBig, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
			if err == nil {
				delay += time.Duration(jitterBig.Int64())
			}
		}
	}

	return delay
}

// RateLimiter provides token-bucket rate limiting for outgoing sends.
type RateLimiter struct {
	config RateLimitConfig
	tokens chan struct{}
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config: config,
		tokens: make(chan struct{}, config.Burst),
	}

	// Fill initial tokens
	for i := 0; i < config.Burst; i++ {
		select {
		case rl.tokens <- struct{}{}:
		default:
		}
	}

	go rl.refillTokens()

	return rl
}

// Wait waits until the rate limit allows the operation to proceed.
func (rl *RateLimiter) Wait(ctx context.Context, email *Email) error {
	if !rl.config.Enabled {
		return nil
	}

	// Per-recipient limiting accounts every recipient of the message
	tokensNeeded := 1
	if rl.config.PerRecipient {
		tokensNeeded = email.TotalRecipients()
	}

	for i := 0; i < tokensNeeded; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rl.tokens:
		default:
			retryAfter := rl.config.Period / time.Duration(rl.config.Rate)
			return NewRateLimitError("rate limit exceeded", retryAfter)
		}
	}

	return nil
}

// refillTokens periodically refills the token bucket.
func (rl *RateLimiter) refillTokens() {
	ticker := time.NewTicker(rl.config.Period / time.Duration(rl.config.Rate))
	defer ticker.Stop()

	for range ticker.C {
		select {
		case rl.tokens <- struct{}{}:
		default:
			// Bucket is full
		}
	}
}
