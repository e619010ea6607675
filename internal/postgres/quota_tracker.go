package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lattiq/courier"
	"github.com/lattiq/courier/internal/core"
	"github.com/lattiq/courier/internal/store"
)

// QuotaTracker is a Postgres-backed courier.QuotaTracker. Unlike the
// in-memory tracker it survives restarts and is shared across replicas, so
// every instance routes against the same usage counters.
type QuotaTracker struct {
	quotas store.QuotaStore
	limits map[string]courier.QuotaLimits
	now    func() time.Time
}

// NewQuotaTracker creates a tracker over the given quota store with
// per-provider limits.
func NewQuotaTracker(quotas store.QuotaStore, limits map[string]courier.QuotaLimits) *QuotaTracker {
	return &QuotaTracker{
		quotas: quotas,
		limits: limits,
		now:    time.Now,
	}
}

// Allow reports whether the provider has headroom for n more recipients in
// both windows.
func (t *QuotaTracker) Allow(ctx context.Context, provider string, n int) error {
	limits := t.limits[provider]
	now := t.now()

	if err := t.check(ctx, provider, core.QuotaDaily, limits.Daily, int64(n), now); err != nil {
		return err
	}
	return t.check(ctx, provider, core.QuotaMonthly, limits.Monthly, int64(n), now)
}

// Record commits n recipients of usage after a successful send. The
// increment and the limit comparison happen in one step: Add returns the
// post-increment total, and an overshoot is rolled back and reported as a
// QuotaError. Allow remains a cheap pre-check; Record is the authority, so
// two replicas racing past Allow cannot both land under the cap.
func (t *QuotaTracker) Record(ctx context.Context, provider string, n int) error {
	limits := t.limits[provider]
	now := t.now()

	if err := t.commit(ctx, provider, core.QuotaDaily, limits.Daily, int64(n), now); err != nil {
		return err
	}
	if err := t.commit(ctx, provider, core.QuotaMonthly, limits.Monthly, int64(n), now); err != nil {
		// The daily increment already landed; take it back so the two
		// windows stay consistent.
		if _, rbErr := t.quotas.Add(ctx, provider, core.QuotaDaily, core.QuotaDaily.Key(now), -int64(n)); rbErr != nil {
			return fmt.Errorf("failed to roll back daily usage: %w", rbErr)
		}
		return err
	}
	return nil
}

func (t *QuotaTracker) commit(ctx context.Context, provider string, window core.QuotaWindowKind, limit, n int64, now time.Time) error {
	total, err := t.quotas.Add(ctx, provider, window, window.Key(now), n)
	if err != nil {
		return fmt.Errorf("failed to record %s usage: %w", window, err)
	}
	if limit > 0 && total > limit {
		if _, rbErr := t.quotas.Add(ctx, provider, window, window.Key(now), -n); rbErr != nil {
			return fmt.Errorf("failed to roll back %s usage: %w", window, rbErr)
		}
		return &core.QuotaError{
			Provider: provider,
			Window:   window,
			Used:     total - n,
			Limit:    limit,
			ResetsAt: window.ResetAt(now),
		}
	}
	return nil
}

// Snapshot returns current usage for the provider's windows.
func (t *QuotaTracker) Snapshot(ctx context.Context, provider string) (daily, monthly core.QuotaSnapshot, err error) {
	limits := t.limits[provider]
	now := t.now()

	dailyUsed, err := t.quotas.Usage(ctx, provider, core.QuotaDaily, core.QuotaDaily.Key(now))
	if err != nil {
		return daily, monthly, err
	}
	monthlyUsed, err := t.quotas.Usage(ctx, provider, core.QuotaMonthly, core.QuotaMonthly.Key(now))
	if err != nil {
		return daily, monthly, err
	}

	daily = core.QuotaSnapshot{
		Window:   core.QuotaDaily,
		Used:     dailyUsed,
		Limit:    limits.Daily,
		ResetsAt: core.QuotaDaily.ResetAt(now),
	}
	monthly = core.QuotaSnapshot{
		Window:   core.QuotaMonthly,
		Used:     monthlyUsed,
		Limit:    limits.Monthly,
		ResetsAt: core.QuotaMonthly.ResetAt(now),
	}
	return daily, monthly, nil
}

func (t *QuotaTracker) check(ctx context.Context, provider string, window core.QuotaWindowKind, limit, n int64, now time.Time) error {
	if limit <= 0 {
		return nil
	}
	used, err := t.quotas.Usage(ctx, provider, window, window.Key(now))
	if err != nil {
		return err
	}
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
