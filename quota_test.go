package courier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattiq/courier/internal/core"
)

func TestMemoryQuotaTracker_AllowWithinLimits(t *testing.T) {
	tracker := NewMemoryQuotaTracker(map[string]QuotaLimits{
		"resend": {Daily: 10, Monthly: 100},
	})
	ctx := context.Background()

	require.NoError(t, tracker.Allow(ctx, "resend", 10))
	require.NoError(t, tracker.Record(ctx, "resend", 10))

	err := tracker.Allow(ctx, "resend", 1)
	require.Error(t, err)

	var qe *QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "resend", qe.Provider)
	assert.Equal(t, core.QuotaDaily, qe.Window)
	assert.Equal(t, int64(10), qe.Used)
	assert.Equal(t, int64(10), qe.Limit)
}

func TestMemoryQuotaTracker_MonthlyLimit(t *testing.T) {
	tracker := NewMemoryQuotaTracker(map[string]QuotaLimits{
		"sendgrid": {Daily: 0, Monthly: 5},
	})
	ctx := context.Background()

	require.NoError(t, tracker.Record(ctx, "sendgrid", 5))

	err := tracker.Allow(ctx, "sendgrid", 1)
	var qe *QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, core.QuotaMonthly, qe.Window)
}

func TestMemoryQuotaTracker_UnlimitedProvider(t *testing.T) {
	tracker := NewMemoryQuotaTracker(map[string]QuotaLimits{})
	ctx := context.Background()

	require.NoError(t, tracker.Record(ctx, "ses", 100000))
	assert.NoError(t, tracker.Allow(ctx, "ses", 100000))
}

func TestMemoryQuotaTracker_DailyRollover(t *testing.T) {
	now := time.Date(2026, 8, 29, 23, 0, 0, 0, time.UTC)
	tracker := newMemoryQuotaTrackerAt(map[string]QuotaLimits{
		"resend": {Daily: 5},
	}, func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, tracker.Record(ctx, "resend", 5))
	require.Error(t, tracker.Allow(ctx, "resend", 1))

	// Crossing UTC midnight opens a fresh window.
	now = now.Add(2 * time.Hour)
	assert.NoError(t, tracker.Allow(ctx, "resend", 5))

	daily, _, err := tracker.Snapshot(ctx, "resend")
	require.NoError(t, err)
	assert.Equal(t, int64(0), daily.Used)
}

func TestMemoryQuotaTracker_MonthlyRollover(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	tracker := newMemoryQuotaTrackerAt(map[string]QuotaLimits{
		"resend": {Monthly: 10},
	}, func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, tracker.Record(ctx, "resend", 10))
	require.Error(t, tracker.Allow(ctx, "resend", 1))

	now = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, tracker.Allow(ctx, "resend", 10))
}

func TestMemoryQuotaTracker_Snapshot(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	tracker := newMemoryQuotaTrackerAt(map[string]QuotaLimits{
		"resend": {Daily: 100, Monthly: 3000},
	}, func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, tracker.Record(ctx, "resend", 7))

	daily, monthly, err := tracker.Snapshot(ctx, "resend")
	require.NoError(t, err)

	assert.Equal(t, int64(7), daily.Used)
	assert.Equal(t, int64(100), daily.Limit)
	assert.Equal(t, int64(93), daily.Remaining())
	assert.Equal(t, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), daily.ResetsAt)

	assert.Equal(t, int64(7), monthly.Used)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), monthly.ResetsAt)
}

func TestQuotaError_RetryableWithResetHint(t *testing.T) {
	resetsAt := time.Now().UTC().Add(3 * time.Hour)
	err := &QuotaError{
		Provider: "resend",
		Window:   core.QuotaDaily,
		Used:     100,
		Limit:    100,
		ResetsAt: resetsAt,
	}

	assert.True(t, IsRetryable(err))
	assert.InDelta(t, (3 * time.Hour).Seconds(), GetRetryAfter(err).Seconds(), 2)
}
