package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattiq/courier/internal/store"
)

type fakeResult struct {
	rows int64
	err  error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, r.err }

func TestMapError(t *testing.T) {
	assert.NoError(t, MapError(nil))

	err := MapError(fmt.Errorf("query: %w", sql.ErrNoRows))
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = MapError(&pgconn.PgError{Code: "23505", ConstraintName: "outbox_messages_pkey"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	checkErr := &pgconn.PgError{Code: "23514", ConstraintName: "provider_quotas_used_check"}
	err = MapError(checkErr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider_quotas_used_check")
	assert.NotErrorIs(t, err, store.ErrDuplicate)

	plain := errors.New("connection refused")
	assert.Equal(t, plain, MapError(plain))
}

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}
	assert.True(t, IsUniqueViolation(unique))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", unique)))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23514"}))
	assert.False(t, IsUniqueViolation(errors.New("nope")))
}

func TestCheckRowsAffected(t *testing.T) {
	assert.NoError(t, CheckRowsAffected(fakeResult{rows: 1}, "outbox message"))

	err := CheckRowsAffected(fakeResult{rows: 0}, "outbox message")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, err.Error(), "outbox message")

	err = CheckRowsAffected(fakeResult{rows: 0}, "")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.Error(t, CheckRowsAffected(nil, "outbox message"))
	assert.Error(t, CheckRowsAffected(fakeResult{err: errors.New("driver")}, "outbox message"))
}
