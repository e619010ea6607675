package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lattiq/courier/internal/core"
	"github.com/lattiq/courier/internal/logger"
	"github.com/lattiq/courier/internal/store"
)

// OutboxStore implements store.OutboxStore using PostgreSQL. Emails are
// stored as JSONB and claimed with FOR UPDATE SKIP LOCKED so multiple
// workers can drain the queue without handing out the same message twice.
type OutboxStore struct {
	db store.DBTX
}

// NewOutboxStore creates a new OutboxStore.
func NewOutboxStore(db store.DBTX) *OutboxStore {
	return &OutboxStore{db: db}
}

// Enqueue persists a new message in pending state.
func (s *OutboxStore) Enqueue(ctx context.Context, msg *store.OutboxMessage) error {
	log := logger.FromContext(ctx)

	payload, err := json.Marshal(msg.Email)
	if err != nil {
		return fmt.Errorf("failed to encode email payload: %w", err)
	}

	query := `
		INSERT INTO outbox_messages
			(id, email, status, attempts, max_attempts, next_attempt_at, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, query,
		msg.ID,
		payload,
		msg.Status,
		msg.Attempts,
		msg.MaxAttempts,
		msg.NextAttemptAt.UTC(),
		msg.LastError,
		now,
		now,
	)
	if err != nil {
		log.Error("failed to enqueue outbox message",
			"message_id", msg.ID,
			"error", err)
		return fmt.Errorf("failed to enqueue outbox message: %w", MapError(err))
	}

	return nil
}

// ClaimDue atomically moves up to limit due pending messages to processing
// and returns them.
func (s *OutboxStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*store.OutboxMessage, error) {
	log := logger.FromContext(ctx)

	query := `
		UPDATE outbox_messages
		SET status = $1, updated_at = $2
		WHERE id IN (
			SELECT id FROM outbox_messages
			WHERE status = $3 AND next_attempt_at <= $4
			ORDER BY next_attempt_at ASC
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, email, status, attempts, max_attempts, next_attempt_at, last_error, created_at, updated_at
	`

	rows, err := s.db.QueryContext(ctx, query,
		store.OutboxStatusProcessing,
		now.UTC(),
		store.OutboxStatusPending,
		now.UTC(),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due outbox messages: %w", MapError(err))
	}
	defer rows.Close()

	claimed, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// Decode per message so one undecodable payload cannot sink the batch.
	// A payload that cannot be decoded can never be delivered, so fail it
	// instead of letting it cycle through processing forever.
	messages := make([]*store.OutboxMessage, 0, len(claimed))
	for _, c := range claimed {
		email, err := decodeEmailPayload(c.payload)
		if err != nil {
			log.Error("failed to decode outbox email payload",
				"message_id", c.msg.ID,
				"error", err)
			if markErr := s.MarkFailed(ctx, c.msg.ID, fmt.Sprintf("undecodable email payload: %v", err)); markErr != nil {
				log.Error("failed to fail undecodable outbox message",
					"message_id", c.msg.ID,
					"error", markErr)
			}
			continue
		}
		c.msg.Email = email
		messages = append(messages, c.msg)
	}
	return messages, nil
}

// MarkSent records a successful delivery.
func (s *OutboxStore) MarkSent(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, store.OutboxStatusSent, "")
}

// MarkFailed moves a message to the terminal failed state.
func (s *OutboxStore) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	return s.setStatus(ctx, id, store.OutboxStatusFailed, lastError)
}

// Reschedule returns a message to pending with an updated attempt count and
// next attempt time.
func (s *OutboxStore) Reschedule(ctx context.Context, id uuid.UUID, attempts int, nextAttemptAt time.Time, lastError string) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, attempts = $2, next_attempt_at = $3, last_error = $4, updated_at = $5
		WHERE id = $6
	`

	result, err := s.db.ExecContext(ctx, query,
		store.OutboxStatusPending,
		attempts,
		nextAttemptAt.UTC(),
		lastError,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to reschedule outbox message: %w", MapError(err))
	}
	return CheckRowsAffected(result, "outbox message")
}

// RequeueProcessing returns messages stuck in processing longer than
// olderThan to pending.
func (s *OutboxStore) RequeueProcessing(ctx context.Context, olderThan time.Duration) (int64, error) {
	log := logger.FromContext(ctx)

	query := `
		UPDATE outbox_messages
		SET status = $1, updated_at = $2
		WHERE status = $3 AND updated_at < $4
	`

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query,
		store.OutboxStatusPending,
		now,
		store.OutboxStatusProcessing,
		now.Add(-olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue processing messages: %w", MapError(err))
	}

	requeued, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if requeued > 0 {
		log.Info("requeued stuck outbox messages", "count", requeued)
	}
	return requeued, nil
}

// Stats returns queue depth by status.
func (s *OutboxStore) Stats(ctx context.Context) (store.OutboxStats, error) {
	var stats store.OutboxStats

	query := `
		SELECT status, COUNT(*) FROM outbox_messages GROUP BY status
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return stats, fmt.Errorf("failed to query outbox stats: %w", MapError(err))
	}
	defer rows.Close()

	for rows.Next() {
		var status store.OutboxStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return stats, fmt.Errorf("failed to scan outbox stats row: %w", err)
		}
		switch status {
		case store.OutboxStatusPending:
			stats.Pending = count
		case store.OutboxStatusProcessing:
			stats.Processing = count
		case store.OutboxStatusSent:
			stats.Sent = count
		case store.OutboxStatusFailed:
			stats.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("error iterating outbox stats rows: %w", err)
	}

	var oldest sql.NullTime
	err = s.db.QueryRowContext(ctx,
		`SELECT MIN(created_at) FROM outbox_messages WHERE status = $1`,
		store.OutboxStatusPending,
	).Scan(&oldest)
	if err != nil {
		return stats, fmt.Errorf("failed to query oldest pending message: %w", MapError(err))
	}
	if oldest.Valid {
		stats.OldestPendingAge = time.Since(oldest.Time)
	}

	return stats, nil
}

func (s *OutboxStore) setStatus(ctx context.Context, id uuid.UUID, status store.OutboxStatus, lastError string) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, last_error = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := s.db.ExecContext(ctx, query, status, lastError, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update outbox message status: %w", MapError(err))
	}
	return CheckRowsAffected(result, "outbox message")
}

type claimedMessage struct {
	msg     *store.OutboxMessage
	payload []byte
}

func scanMessages(rows *sql.Rows) ([]claimedMessage, error) {
	var messages []claimedMessage

	for rows.Next() {
		var (
			msg       store.OutboxMessage
			payload   []byte
			lastError sql.NullString
		)
		if err := rows.Scan(
			&msg.ID,
			&payload,
			&msg.Status,
			&msg.Attempts,
			&msg.MaxAttempts,
			&msg.NextAttemptAt,
			&lastError,
			&msg.CreatedAt,
			&msg.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox message row: %w", err)
		}
		msg.LastError = lastError.String

		messages = append(messages, claimedMessage{msg: &msg, payload: payload})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox message rows: %w", err)
	}

	return messages, nil
}

func decodeEmailPayload(payload []byte) (*core.Email, error) {
	var email core.Email
	if err := json.Unmarshal(payload, &email); err != nil {
		return nil, fmt.Errorf("failed to decode email payload: %w", err)
	}
	return &email, nil
}
