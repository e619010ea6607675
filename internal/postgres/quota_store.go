package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lattiq/courier/internal/core"
	"github.com/lattiq/courier/internal/store"
)

// QuotaStore implements store.QuotaStore using PostgreSQL. Counters are
// keyed by provider, window kind, and window key, so a new day or month
// starts at zero without any scheduled reset.
type QuotaStore struct {
	db store.DBTX
}

// NewQuotaStore creates a new QuotaStore.
func NewQuotaStore(db store.DBTX) *QuotaStore {
	return &QuotaStore{db: db}
}

// Add increments the counter for the given window by n and returns the new
// total, creating the row on first use.
func (s *QuotaStore) Add(ctx context.Context, provider string, window core.QuotaWindowKind, windowKey string, n int64) (int64, error) {
	query := `
		INSERT INTO provider_quotas (provider, window_kind, window_key, used, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider, window_kind, window_key)
		DO UPDATE SET used = provider_quotas.used + EXCLUDED.used, updated_at = EXCLUDED.updated_at
		RETURNING used
	`

	var used int64
	err := s.db.QueryRowContext(ctx, query,
		provider, string(window), windowKey, n, time.Now().UTC(),
	).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("failed to increment quota counter: %w", MapError(err))
	}
	return used, nil
}

// Usage returns the current counter for the given window, or zero when no
// row exists.
func (s *QuotaStore) Usage(ctx context.Context, provider string, window core.QuotaWindowKind, windowKey string) (int64, error) {
	query := `
		SELECT used FROM provider_quotas
		WHERE provider = $1 AND window_kind = $2 AND window_key = $3
	`

	var used int64
	err := s.db.QueryRowContext(ctx, query, provider, string(window), windowKey).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read quota counter: %w", MapError(err))
	}
	return used, nil
}
