// Package outbox implements the durable delivery queue: messages are
// persisted first, then drained by a background worker pool that retries
// transient failures with exponential backoff and recovers interrupted work
// after a crash.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lattiq/courier/internal/core"
	"github.com/lattiq/courier/internal/store"
)

// Sender delivers a single email. *courier.Client satisfies this.
type Sender interface {
	Send(ctx context.Context, email *core.Email) error
}

// Config holds configuration for the outbox worker.
type Config struct {
	// WorkerCount determines how many concurrent workers deliver messages.
	WorkerCount int

	// PollInterval determines how often the poller claims due messages.
	PollInterval time.Duration

	// BatchSize caps how many messages one poll claims.
	BatchSize int

	// MaxAttempts caps delivery attempts before a message is marked failed.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the retry delay.
	MaxBackoff time.Duration

	// BackoffMultiplier grows the delay between consecutive retries.
	BackoffMultiplier float64

	// StuckAge defines how long a message can sit in processing state
	// before it's considered stuck and reset.
	StuckAge time.Duration

	// StuckCheckInterval defines how often to check for stuck messages.
	// If zero, defaults to 5 minutes.
	StuckCheckInterval time.Duration
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		WorkerCount:        2,
		PollInterval:       5 * time.Second,
		BatchSize:          20,
		MaxAttempts:        5,
		InitialBackoff:     30 * time.Second,
		MaxBackoff:         30 * time.Minute,
		BackoffMultiplier:  2.0,
		StuckAge:           10 * time.Minute,
		StuckCheckInterval: 5 * time.Minute,
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.WorkerCount <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", c.WorkerCount)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.BackoffMultiplier < 1.0 {
		return fmt.Errorf("backoff multiplier must be at least 1.0, got %v", c.BackoffMultiplier)
	}
	return nil
}

// backoffDelay returns the delay before the next attempt. attempts is the
// number of attempts already made.
func (c Config) backoffDelay(attempts int) time.Duration {
	delay := c.InitialBackoff
	for i := 1; i < attempts; i++ {
		delay = time.Duration(float64(delay) * c.BackoffMultiplier)
		if delay >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	if delay > c.MaxBackoff {
		return c.MaxBackoff
	}
	return delay
}

// Queue is the enqueue side of the outbox. It satisfies courier.Outbox so
// it can be handed to the client via WithOutbox.
type Queue struct {
	store       store.OutboxStore
	maxAttempts int
}

// NewQueue creates a Queue writing to the given store.
func NewQueue(s store.OutboxStore, maxAttempts int) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = DefaultConfig().MaxAttempts
	}
	return &Queue{store: s, maxAttempts: maxAttempts}
}

// Enqueue persists the email for later delivery.
func (q *Queue) Enqueue(ctx context.Context, email *core.Email) error {
	_, err := q.EnqueueMessage(ctx, email)
	return err
}

// EnqueueMessage persists the email and returns the queued message ID.
func (q *Queue) EnqueueMessage(ctx context.Context, email *core.Email) (uuid.UUID, error) {
	if err := email.Validate(); err != nil {
		return uuid.Nil, err
	}
	// Attachment data is an io.Reader and cannot survive the JSON round trip
	// through the store.
	if len(email.Attachments) > 0 {
		return uuid.Nil, core.NewValidationError("attachments", "attachments cannot be queued for deferred delivery")
	}

	msg := &store.OutboxMessage{
		ID:            uuid.New(),
		Email:         email,
		Status:        store.OutboxStatusPending,
		MaxAttempts:   q.maxAttempts,
		NextAttemptAt: time.Now().UTC(),
	}
	if err := q.store.Enqueue(ctx, msg); err != nil {
		return uuid.Nil, err
	}
	return msg.ID, nil
}
