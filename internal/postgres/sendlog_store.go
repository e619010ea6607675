package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lattiq/courier/internal/store"
)

// SendLogStore implements store.SendLogStore using PostgreSQL.
type SendLogStore struct {
	db store.DBTX
}

// NewSendLogStore creates a new SendLogStore.
func NewSendLogStore(db store.DBTX) *SendLogStore {
	return &SendLogStore{db: db}
}

// Insert records one delivery attempt.
func (s *SendLogStore) Insert(ctx context.Context, entry *store.SendLogEntry) error {
	query := `
		INSERT INTO send_log
			(id, provider, message_id, recipients, subject, status, error, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Provider,
		entry.MessageID,
		entry.Recipients,
		entry.Subject,
		entry.Status,
		entry.Error,
		entry.DurationMS,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert send log entry: %w", MapError(err))
	}
	return nil
}

// List returns attempts matching params, newest first.
func (s *SendLogStore) List(ctx context.Context, params store.ListSendsParams) ([]*store.SendLogEntry, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, provider, message_id, recipients, subject, status, error, duration_ms, created_at
		FROM send_log
		WHERE ($1 = '' OR provider = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := s.db.QueryContext(ctx, query,
		params.Provider, string(params.Status), limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query send log: %w", MapError(err))
	}
	defer rows.Close()

	var entries []*store.SendLogEntry
	for rows.Next() {
		var (
			entry     store.SendLogEntry
			messageID sql.NullString
			errMsg    sql.NullString
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.Provider,
			&messageID,
			&entry.Recipients,
			&entry.Subject,
			&entry.Status,
			&errMsg,
			&entry.DurationMS,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan send log row: %w", err)
		}
		entry.MessageID = messageID.String
		entry.Error = errMsg.String
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating send log rows: %w", err)
	}

	return entries, nil
}
