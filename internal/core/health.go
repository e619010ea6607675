package core

import "time"

// QuotaWindowKind identifies a quota accounting window.
type QuotaWindowKind string

const (
	// QuotaDaily is the per-day window, rolling over at UTC midnight.
	QuotaDaily QuotaWindowKind = "daily"

	// QuotaMonthly is the per-month window, rolling over on the first of
	// the month (UTC).
	QuotaMonthly QuotaWindowKind = "monthly"
)

// Key returns the storage key for the window containing t.
// Daily windows key as "2006-01-02", monthly as "2006-01".
func (k QuotaWindowKind) Key(t time.Time) string {
	t = t.UTC()
	switch k {
	case QuotaMonthly:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

// ResetAt returns when the window containing t rolls over.
func (k QuotaWindowKind) ResetAt(t time.Time) time.Time {
	t = t.UTC()
	switch k {
	case QuotaMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	}
}

// QuotaSnapshot describes usage of a single quota window.
type QuotaSnapshot struct {
	Window   QuotaWindowKind `json:"window"`
	Used     int64           `json:"used"`
	Limit    int64           `json:"limit"` // 0 means unlimited
	ResetsAt time.Time       `json:"resets_at"`
}

// Remaining returns the headroom left in the window. Unlimited windows
// report -1.
func (s QuotaSnapshot) Remaining() int64 {
	if s.Limit <= 0 {
		return -1
	}
	rem := s.Limit - s.Used
	if rem < 0 {
		rem = 0
	}
	return rem
}

// ProviderHealth is a point-in-time view of a provider's routing state,
// served by the admin health API.
type ProviderHealth struct {
	Provider            string        `json:"provider"`
	Priority            int           `json:"priority"`
	State               string        `json:"state"` // circuit state: closed, open, half-open
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastError           string        `json:"last_error,omitempty"`
	LastErrorAt         time.Time     `json:"last_error_at"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	Daily               QuotaSnapshot `json:"daily"`
	Monthly             QuotaSnapshot `json:"monthly"`
}

// Eligible reports whether the provider can accept n more recipients right
// now: circuit not open and headroom in both windows.
func (h ProviderHealth) Eligible(n int64) bool {
	if h.State == "open" {
		return false
	}
	for _, w := range []QuotaSnapshot{h.Daily, h.Monthly} {
		if w.Limit > 0 && w.Used+n > w.Limit {
			return false
		}
	}
	return true
}
