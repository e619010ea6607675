package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SendLogEntry records a single delivery attempt for the admin send history.
type SendLogEntry struct {
	ID         uuid.UUID         `json:"id"`
	Provider   string            `json:"provider"`
	MessageID  string            `json:"message_id,omitempty"`
	Recipients int               `json:"recipients"`
	Subject    string            `json:"subject"`
	Status     SendAttemptStatus `json:"status"`
	Error      string            `json:"error,omitempty"`
	DurationMS int64             `json:"duration_ms"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ListSendsParams filters and pages the send history.
type ListSendsParams struct {
	Provider string
	Status   SendAttemptStatus
	Limit    int
	Offset   int
}

// SendLogStore persists delivery attempt history.
type SendLogStore interface {
	// Insert records one delivery attempt.
	Insert(ctx context.Context, entry *SendLogEntry) error

	// List returns attempts matching params, newest first.
	List(ctx context.Context, params ListSendsParams) ([]*SendLogEntry, error)
}

// BreakerEvent records a circuit breaker state transition.
type BreakerEvent struct {
	ID        uuid.UUID `json:"id"`
	Provider  string    `json:"provider"`
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BreakerEventStore persists circuit breaker transitions for the admin API.
type BreakerEventStore interface {
	// Insert records one transition.
	Insert(ctx context.Context, event *BreakerEvent) error

	// Recent returns the most recent transitions, newest first.
	Recent(ctx context.Context, limit int) ([]*BreakerEvent, error)
}
