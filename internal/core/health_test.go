package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuotaWindowKind_Key(t *testing.T) {
	at := time.Date(2026, 8, 29, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, "2026-08-29", QuotaDaily.Key(at))
	assert.Equal(t, "2026-08", QuotaMonthly.Key(at))
}

func TestQuotaWindowKind_KeyNormalizesToUTC(t *testing.T) {
	// 23:30 in UTC+5 is still the 29th in UTC.
	loc := time.FixedZone("east", 5*3600)
	at := time.Date(2026, 8, 30, 1, 30, 0, 0, loc)

	assert.Equal(t, "2026-08-29", QuotaDaily.Key(at))
}

func TestQuotaWindowKind_ResetAt(t *testing.T) {
	at := time.Date(2026, 8, 29, 15, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), QuotaDaily.ResetAt(at))
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), QuotaMonthly.ResetAt(at))
}

func TestQuotaWindowKind_ResetAtYearBoundary(t *testing.T) {
	at := time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), QuotaDaily.ResetAt(at))
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), QuotaMonthly.ResetAt(at))
}

func TestQuotaSnapshot_Remaining(t *testing.T) {
	assert.Equal(t, int64(70), QuotaSnapshot{Used: 30, Limit: 100}.Remaining())
	assert.Equal(t, int64(0), QuotaSnapshot{Used: 120, Limit: 100}.Remaining())
	assert.Equal(t, int64(-1), QuotaSnapshot{Used: 30}.Remaining())
}

func TestProviderHealth_Eligible(t *testing.T) {
	healthy := ProviderHealth{
		State:   "closed",
		Daily:   QuotaSnapshot{Used: 10, Limit: 100},
		Monthly: QuotaSnapshot{Used: 10, Limit: 1000},
	}
	assert.True(t, healthy.Eligible(1))
	assert.True(t, healthy.Eligible(90))
	assert.False(t, healthy.Eligible(91))

	open := healthy
	open.State = "open"
	assert.False(t, open.Eligible(1))

	halfOpen := healthy
	halfOpen.State = "half-open"
	assert.True(t, halfOpen.Eligible(1))

	monthlyFull := healthy
	monthlyFull.Monthly.Used = 1000
	assert.False(t, monthlyFull.Eligible(1))

	unlimited := ProviderHealth{State: "closed"}
	assert.True(t, unlimited.Eligible(100000))
}
