package courier

import (
	"context"
	"sync"
	"time"

	"github.com/lattiq/courier/internal/core"
)

// QuotaLimits holds the configured caps for one provider.
type QuotaLimits struct {
	// Daily caps recipients per UTC day. 0 means unlimited.
	Daily int64

	// Monthly caps recipients per UTC month. 0 means unlimited.
	Monthly int64
}

// MemoryQuotaTracker is a process-local QuotaTracker. Counters are keyed by
// provider and window so rollover is implicit: a new day or month reads as
// zero usage. Suitable for tests and single-process library use; the
// service uses the Postgres-backed tracker instead.
type MemoryQuotaTracker struct {
	limits map[string]QuotaLimits
	now    func() time.Time
	mu     sync.Mutex
	used   map[string]int64 // key: provider + "|" + window key
}

// NewMemoryQuotaTracker creates an in-memory tracker with per-provider limits.
func NewMemoryQuotaTracker(limits map[string]QuotaLimits) *MemoryQuotaTracker {
	return &MemoryQuotaTracker{
		limits: limits,
		now:    time.Now,
		used:   make(map[string]int64),
	}
}

// newMemoryQuotaTrackerAt is like NewMemoryQuotaTracker with an injectable
// clock, for rollover tests.
func newMemoryQuotaTrackerAt(limits map[string]QuotaLimits, now func() time.Time) *MemoryQuotaTracker {
	t := NewMemoryQuotaTracker(limits)
	t.now = now
	return t
}

// Allow reports whether the provider has headroom for n more recipients.
func (t *MemoryQuotaTracker) Allow(ctx context.Context, provider string, n int) error {
	limits := t.limits[provider]
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkLocked(provider, core.QuotaDaily, limits.Daily, int64(n), now); err != nil {
		return err
	}
	return t.checkLocked(provider, core.QuotaMonthly, limits.Monthly, int64(n), now)
}

// Record commits n recipients of usage after a successful send.
func (t *MemoryQuotaTracker) Record(ctx context.Context, provider string, n int) error {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.used[quotaKey(provider, core.QuotaDaily, now)] += int64(n)
	t.used[quotaKey(provider, core.QuotaMonthly, now)] += int64(n)
	return nil
}

// Snapshot returns current usage for the provider's windows.
func (t *MemoryQuotaTracker) Snapshot(ctx context.Context, provider string) (daily, monthly QuotaSnapshot, err error) {
	limits := t.limits[provider]
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	daily = QuotaSnapshot{
		Window:   core.QuotaDaily,
		Used:     t.used[quotaKey(provider, core.QuotaDaily, now)],
		Limit:    limits.Daily,
		ResetsAt: core.QuotaDaily.ResetAt(now),
	}
	monthly = QuotaSnapshot{
		Window:   core.QuotaMonthly,
		Used:     t.used[quotaKey(provider, core.QuotaMonthly, now)],
		Limit:    limits.Monthly,
		ResetsAt: core.QuotaMonthly.ResetAt(now),
	}
	return daily, monthly, nil
}

// checkLocked must be called with t.mu held.
func (t *MemoryQuotaTracker) checkLocked(provider string, window core.QuotaWindowKind, limit, n int64, now time.Time) error {
	if limit <= 0 {
		return nil
	}
	used := t.used[quotaKey(provider, window, now)]
	if used+n > limit {
		return &core.QuotaError{
			Provider: provider,
			Window:   window,
			Used:     used,
			Limit:    limit,
			ResetsAt: window.ResetAt(now),
		}
	}
	return nil
}

func quotaKey(provider string, window core.QuotaWindowKind, now time.Time) string {
	return provider + "|" + string(window) + "|" + window.Key(now)
}
