package store

import (
	"context"

	"github.com/lattiq/courier/internal/core"
)

// QuotaStore persists per-provider send volume counters. Rows are keyed by
// provider, window kind, and window key (e.g. "2026-08-29" or "2026-08") so
// rollover needs no scheduled job: a new day or month simply reads as zero.
type QuotaStore interface {
	// Add increments the counter for the given window by n and returns
	// the new total. The row is created on first use.
	Add(ctx context.Context, provider string, window core.QuotaWindowKind, windowKey string, n int64) (int64, error)

	// Usage returns the current counter for the given window, or zero
	// when no row exists.
	Usage(ctx context.Context, provider string, window core.QuotaWindowKind, windowKey string) (int64, error)
}

// SendAttemptStatus is the recorded outcome of one delivery attempt.
type SendAttemptStatus string

// Send log statuses.
const (
	SendStatusSent   SendAttemptStatus = "sent"
	SendStatusFailed SendAttemptStatus = "failed"
)
