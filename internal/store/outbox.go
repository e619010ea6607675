package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lattiq/courier/internal/core"
)

// OutboxStatus represents the lifecycle state of a queued message.
type OutboxStatus string

// Outbox message statuses.
const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusSent       OutboxStatus = "sent"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// OutboxMessage is a durably queued email awaiting delivery.
type OutboxMessage struct {
	ID            uuid.UUID
	Email         *core.Email
	Status        OutboxStatus
	Attempts      int
	MaxAttempts   int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OutboxStats summarizes queue depth by status.
type OutboxStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	// OldestPendingAge is the age of the oldest pending message. Zero when
	// the queue is empty.
	OldestPendingAge time.Duration `json:"oldest_pending_age_ns"`
}

// OutboxStore persists the durable delivery queue.
type OutboxStore interface {
	// Enqueue persists a new message in pending state.
	Enqueue(ctx context.Context, msg *OutboxMessage) error

	// ClaimDue atomically moves up to limit due pending messages to
	// processing and returns them. Concurrent workers never claim the
	// same message twice.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*OutboxMessage, error)

	// MarkSent records a successful delivery.
	MarkSent(ctx context.Context, id uuid.UUID) error

	// MarkFailed moves a message to the terminal failed state.
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error

	// Reschedule returns a message to pending with an updated attempt
	// count and next attempt time.
	Reschedule(ctx context.Context, id uuid.UUID, attempts int, nextAttemptAt time.Time, lastError string) error

	// RequeueProcessing returns messages stuck in processing longer than
	// olderThan to pending. Used on startup and by the stuck-message
	// monitor to recover from crashes.
	RequeueProcessing(ctx context.Context, olderThan time.Duration) (int64, error)

	// Stats returns queue depth by status.
	Stats(ctx context.Context) (OutboxStats, error)
}
