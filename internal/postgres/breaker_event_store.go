package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lattiq/courier/internal/store"
)

// BreakerEventStore implements store.BreakerEventStore using PostgreSQL.
type BreakerEventStore struct {
	db store.DBTX
}

// NewBreakerEventStore creates a new BreakerEventStore.
func NewBreakerEventStore(db store.DBTX) *BreakerEventStore {
	return &BreakerEventStore{db: db}
}

// Insert records one circuit breaker transition.
func (s *BreakerEventStore) Insert(ctx context.Context, event *store.BreakerEvent) error {
	query := `
		INSERT INTO breaker_events (id, provider, from_state, to_state, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.Provider,
		event.FromState,
		event.ToState,
		event.LastError,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert breaker event: %w", MapError(err))
	}
	return nil
}

// Recent returns the most recent transitions, newest first.
func (s *BreakerEventStore) Recent(ctx context.Context, limit int) ([]*store.BreakerEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, provider, from_state, to_state, last_error, created_at
		FROM breaker_events
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query breaker events: %w", MapError(err))
	}
	defer rows.Close()

	var events []*store.BreakerEvent
	for rows.Next() {
		var (
			event     store.BreakerEvent
			lastError sql.NullString
		)
		if err := rows.Scan(
			&event.ID,
			&event.Provider,
			&event.FromState,
			&event.ToState,
			&lastError,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan breaker event row: %w", err)
		}
		event.LastError = lastError.String
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating breaker event rows: %w", err)
	}

	return events, nil
}
