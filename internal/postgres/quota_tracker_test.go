package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattiq/courier"
	"github.com/lattiq/courier/internal/core"
)

// memoryQuotaStore is an in-memory store.QuotaStore for tracker tests.
type memoryQuotaStore struct {
	mu   sync.Mutex
	used map[string]int64
}

func newMemoryQuotaStore() *memoryQuotaStore {
	return &memoryQuotaStore{used: make(map[string]int64)}
}

func (s *memoryQuotaStore) key(provider string, window core.QuotaWindowKind, windowKey string) string {
	return provider + "|" + string(window) + "|" + windowKey
}

func (s *memoryQuotaStore) Add(_ context.Context, provider string, window core.QuotaWindowKind, windowKey string, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.key(provider, window, windowKey)
	s.used[k] += n
	return s.used[k], nil
}

func (s *memoryQuotaStore) Usage(_ context.Context, provider string, window core.QuotaWindowKind, windowKey string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used[s.key(provider, window, windowKey)], nil
}

func newTrackerAt(quotas *memoryQuotaStore, limits map[string]courier.QuotaLimits, at time.Time) (*QuotaTracker, *time.Time) {
	now := at
	tracker := NewQuotaTracker(quotas, limits)
	tracker.now = func() time.Time { return now }
	return tracker, &now
}

func TestQuotaTracker_AllowWithinLimits(t *testing.T) {
	ctx := context.Background()
	quotas := newMemoryQuotaStore()
	tracker, _ := newTrackerAt(quotas, map[string]courier.QuotaLimits{
		"resend": {Daily: 10, Monthly: 100},
	}, time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))

	require.NoError(t, tracker.Allow(ctx, "resend", 10))
	require.NoError(t, tracker.Record(ctx, "resend", 10))

	err := tracker.Allow(ctx, "resend", 1)
	require.Error(t, err)

	var qe *core.QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "resend", qe.Provider)
	assert.Equal(t, core.QuotaDaily, qe.Window)
	assert.Equal(t, int64(10), qe.Used)
	assert.Equal(t, int64(10), qe.Limit)
}

func TestQuotaTracker_MonthlyLimit(t *testing.T) {
	ctx := context.Background()
	quotas := newMemoryQuotaStore()
	tracker, _ := newTrackerAt(quotas, map[string]courier.QuotaLimits{
		"resend": {Monthly: 5},
	}, time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))

	require.NoError(t, tracker.Record(ctx, "resend", 5))

	err := tracker.Allow(ctx, "resend", 1)
	var qe *core.QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, core.QuotaMonthly, qe.Window)
}

func TestQuotaTracker_RecordEnforcesLimit(t *testing.T) {
	ctx := context.Background()
	quotas := newMemoryQuotaStore()
	tracker, _ := newTrackerAt(quotas, map[string]courier.QuotaLimits{
		"resend": {Daily: 10},
	}, time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))

	require.NoError(t, tracker.Record(ctx, "resend", 6))

	// A second commit racing past Allow must not land over the cap.
	err := tracker.Record(ctx, "resend", 6)
	require.Error(t, err)

	var qe *core.QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "resend", qe.Provider)
	assert.Equal(t, core.QuotaDaily, qe.Window)
	assert.Equal(t, int64(6), qe.Used)
	assert.Equal(t, int64(10), qe.Limit)

	used, err := quotas.Usage(ctx, "resend", core.QuotaDaily, core.QuotaDaily.Key(time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, int64(6), used)
}

func TestQuotaTracker_RecordMonthlyOvershootRollsBackDaily(t *testing.T) {
	ctx := context.Background()
	quotas := newMemoryQuotaStore()
	at := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	tracker, _ := newTrackerAt(quotas, map[string]courier.QuotaLimits{
		"resend": {Daily: 100, Monthly: 10},
	}, at)

	require.NoError(t, tracker.Record(ctx, "resend", 8))

	err := tracker.Record(ctx, "resend", 8)
	var qe *core.QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, core.QuotaMonthly, qe.Window)

	daily, err := quotas.Usage(ctx, "resend", core.QuotaDaily, core.QuotaDaily.Key(at))
	require.NoError(t, err)
	assert.Equal(t, int64(8), daily)

	monthly, err := quotas.Usage(ctx, "resend", core.QuotaMonthly, core.QuotaMonthly.Key(at))
	require.NoError(t, err)
	assert.Equal(t, int64(8), monthly)
}

func TestQuotaTracker_UnlimitedProvider(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTrackerAt(newMemoryQuotaStore(), nil, time.Now().UTC())

	assert.NoError(t, tracker.Allow(ctx, "smtp", 100000))
}

func TestQuotaTracker_DailyRollover(t *testing.T) {
	ctx := context.Background()
	quotas := newMemoryQuotaStore()
	tracker, now := newTrackerAt(quotas, map[string]courier.QuotaLimits{
		"resend": {Daily: 1},
	}, time.Date(2026, 8, 29, 23, 0, 0, 0, time.UTC))

	require.NoError(t, tracker.Record(ctx, "resend", 1))
	require.Error(t, tracker.Allow(ctx, "resend", 1))

	// Past UTC midnight the daily window starts fresh.
	*now = time.Date(2026, 8, 30, 0, 30, 0, 0, time.UTC)
	assert.NoError(t, tracker.Allow(ctx, "resend", 1))
}

func TestQuotaTracker_MonthlyRollover(t *testing.T) {
	ctx := context.Background()
	quotas := newMemoryQuotaStore()
	tracker, now := newTrackerAt(quotas, map[string]courier.QuotaLimits{
		"resend": {Monthly: 1},
	}, time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))

	require.NoError(t, tracker.Record(ctx, "resend", 1))
	require.Error(t, tracker.Allow(ctx, "resend", 1))

	*now = time.Date(2026, 9, 1, 0, 30, 0, 0, time.UTC)
	assert.NoError(t, tracker.Allow(ctx, "resend", 1))
}

func TestQuotaTracker_Snapshot(t *testing.T) {
	ctx := context.Background()
	quotas := newMemoryQuotaStore()
	tracker, _ := newTrackerAt(quotas, map[string]courier.QuotaLimits{
		"resend": {Daily: 100, Monthly: 3000},
	}, time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))

	require.NoError(t, tracker.Record(ctx, "resend", 7))

	daily, monthly, err := tracker.Snapshot(ctx, "resend")
	require.NoError(t, err)

	assert.Equal(t, int64(7), daily.Used)
	assert.Equal(t, int64(100), daily.Limit)
	assert.Equal(t, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), daily.ResetsAt)

	assert.Equal(t, int64(7), monthly.Used)
	assert.Equal(t, int64(3000), monthly.Limit)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), monthly.ResetsAt)
}
