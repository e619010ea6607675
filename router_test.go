package courier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattiq/courier/internal/core"
)

// fakeProvider is a scriptable core.Provider for routing tests.
type fakeProvider struct {
	name  string
	err   error
	calls int
}

func (p *fakeProvider) Send(ctx context.Context, email *core.Email) (*core.SendResult, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &core.SendResult{
		MessageID: p.name + "-msg-1",
		Provider:  p.name,
		Timestamp: time.Now(),
	}, nil
}

func (p *fakeProvider) SendBatch(ctx context.Context, emails []*core.Email) (*core.BatchResult, error) {
	result := &core.BatchResult{Total: len(emails), Provider: p.name}
	for i, email := range emails {
		res, err := p.Send(ctx, email)
		if err != nil {
			result.Failed = append(result.Failed, core.BatchFailure{Index: i, Email: email, Error: err})
			continue
		}
		result.Successful = append(result.Successful, res)
	}
	return result, nil
}

func (p *fakeProvider) ValidateConfig() error { return nil }
func (p *fakeProvider) Name() string          { return p.name }

func testEmail() *core.Email {
	return &core.Email{
		From:     core.Address{Email: "noreply@example.com"},
		To:       []core.Address{{Email: "user@example.com"}},
		Subject:  "hello",
		TextBody: "hello",
	}
}

func newTestRouter(t *testing.T, tracker QuotaTracker, observer DeliveryObserver, providers ...*fakeProvider) (*Router, map[string]*CircuitBreaker) {
	t.Helper()

	if tracker == nil {
		tracker = NewMemoryQuotaTracker(nil)
	}

	reg := NewBreakerRegistry(testBreakerConfig(), nil)
	breakers := make(map[string]*CircuitBreaker)
	routed := make([]routedProvider, 0, len(providers))
	for i, p := range providers {
		cb := reg.Get(p.name)
		breakers[p.name] = cb
		routed = append(routed, routedProvider{
			name:     p.name,
			priority: i + 1,
			provider: p,
			breaker:  cb,
		})
	}
	return NewRouter(routed, tracker, observer), breakers
}

func TestRouter_DeliversThroughFirstProvider(t *testing.T) {
	first := &fakeProvider{name: "resend"}
	second := &fakeProvider{name: "sendgrid"}
	router, _ := newTestRouter(t, nil, nil, first, second)

	result, err := router.Deliver(context.Background(), testEmail())
	require.NoError(t, err)
	assert.Equal(t, "resend", result.Provider)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls)
}

func TestRouter_RetryableFailureFallsThrough(t *testing.T) {
	first := &fakeProvider{name: "resend", err: core.NewRetryableProviderError("resend", "SEND_FAILED", "upstream 500")}
	second := &fakeProvider{name: "sendgrid"}
	router, _ := newTestRouter(t, nil, nil, first, second)

	result, err := router.Deliver(context.Background(), testEmail())
	require.NoError(t, err)
	assert.Equal(t, "sendgrid", result.Provider)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestRouter_PermanentFailureAborts(t *testing.T) {
	permanent := core.NewProviderError("resend", "REJECTED", "bad sender domain")
	first := &fakeProvider{name: "resend", err: permanent}
	second := &fakeProvider{name: "sendgrid"}
	router, _ := newTestRouter(t, nil, nil, first, second)

	_, err := router.Deliver(context.Background(), testEmail())
	require.Error(t, err)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 0, second.calls, "permanent errors must not fall through")
}

func TestRouter_SkipsProviderWithOpenCircuit(t *testing.T) {
	first := &fakeProvider{name: "resend"}
	second := &fakeProvider{name: "sendgrid"}
	router, breakers := newTestRouter(t, nil, nil, first, second)

	for i := 0; i < 3; i++ {
		breakers["resend"].RecordFailure(errors.New("boom"))
	}

	result, err := router.Deliver(context.Background(), testEmail())
	require.NoError(t, err)
	assert.Equal(t, "sendgrid", result.Provider)
	assert.Equal(t, 0, first.calls)
}

func TestRouter_SkipsProviderWithExhaustedQuota(t *testing.T) {
	tracker := NewMemoryQuotaTracker(map[string]QuotaLimits{
		"resend": {Daily: 1},
	})
	require.NoError(t, tracker.Record(context.Background(), "resend", 1))

	first := &fakeProvider{name: "resend"}
	second := &fakeProvider{name: "sendgrid"}
	router, _ := newTestRouter(t, tracker, nil, first, second)

	result, err := router.Deliver(context.Background(), testEmail())
	require.NoError(t, err)
	assert.Equal(t, "sendgrid", result.Provider)
	assert.Equal(t, 0, first.calls)
}

func TestRouter_ExhaustionReturnsRouteError(t *testing.T) {
	first := &fakeProvider{name: "resend", err: core.NewRetryableProviderError("resend", "SEND_FAILED", "down")}
	second := &fakeProvider{name: "sendgrid", err: core.NewRetryableProviderError("sendgrid", "SEND_FAILED", "down too")}
	router, _ := newTestRouter(t, nil, nil, first, second)

	_, err := router.Deliver(context.Background(), testEmail())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoProviderAvailable)

	var re *RouteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 2, re.Attempted)
	assert.Equal(t, 0, re.Skipped)
	assert.True(t, IsRetryable(re))
}

func TestRouter_AllSkippedReturnsRouteError(t *testing.T) {
	tracker := NewMemoryQuotaTracker(map[string]QuotaLimits{
		"resend":   {Daily: 1},
		"sendgrid": {Daily: 1},
	})
	ctx := context.Background()
	require.NoError(t, tracker.Record(ctx, "resend", 1))
	require.NoError(t, tracker.Record(ctx, "sendgrid", 1))

	router, _ := newTestRouter(t, tracker,
		nil,
		&fakeProvider{name: "resend"},
		&fakeProvider{name: "sendgrid"})

	_, err := router.Deliver(ctx, testEmail())
	require.Error(t, err)

	var re *RouteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 0, re.Attempted)
	assert.Equal(t, 2, re.Skipped)

	var qe *QuotaError
	assert.ErrorAs(t, re.LastErr, &qe)
}

func TestRouter_SuccessRecordsQuotaUsage(t *testing.T) {
	tracker := NewMemoryQuotaTracker(map[string]QuotaLimits{
		"resend": {Daily: 10},
	})
	router, _ := newTestRouter(t, tracker, nil, &fakeProvider{name: "resend"})

	_, err := router.Deliver(context.Background(), testEmail())
	require.NoError(t, err)

	daily, _, err := tracker.Snapshot(context.Background(), "resend")
	require.NoError(t, err)
	assert.Equal(t, int64(1), daily.Used)
}

func TestRouter_FailureOpensCircuitEventually(t *testing.T) {
	first := &fakeProvider{name: "resend", err: core.NewRetryableProviderError("resend", "SEND_FAILED", "down")}
	second := &fakeProvider{name: "sendgrid"}
	router, breakers := newTestRouter(t, nil, nil, first, second)

	for i := 0; i < 3; i++ {
		_, err := router.Deliver(context.Background(), testEmail())
		require.NoError(t, err)
	}
	assert.Equal(t, BreakerOpen, breakers["resend"].State())
	assert.Equal(t, 3, first.calls)

	// Next delivery skips the open circuit entirely.
	_, err := router.Deliver(context.Background(), testEmail())
	require.NoError(t, err)
	assert.Equal(t, 3, first.calls)
}

func TestRouter_ObserverSeesAttempts(t *testing.T) {
	var records []DeliveryRecord
	observer := func(ctx context.Context, rec DeliveryRecord) {
		records = append(records, rec)
	}

	first := &fakeProvider{name: "resend", err: core.NewRetryableProviderError("resend", "SEND_FAILED", "down")}
	second := &fakeProvider{name: "sendgrid"}
	router, _ := newTestRouter(t, nil, observer, first, second)

	_, err := router.Deliver(context.Background(), testEmail())
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "resend", records[0].Provider)
	assert.Error(t, records[0].Err)
	assert.Equal(t, "sendgrid", records[1].Provider)
	assert.NoError(t, records[1].Err)
	assert.Equal(t, "sendgrid-msg-1", records[1].MessageID)
}

func TestRouter_PriorityOrdering(t *testing.T) {
	reg := NewBreakerRegistry(testBreakerConfig(), nil)
	low := &fakeProvider{name: "backup"}
	high := &fakeProvider{name: "primary"}

	// Declared out of order; priority must win.
	routed := []routedProvider{
		{name: "backup", priority: 9, provider: low, breaker: reg.Get("backup")},
		{name: "primary", priority: 1, provider: high, breaker: reg.Get("primary")},
	}
	router := NewRouter(routed, NewMemoryQuotaTracker(nil), nil)

	result, err := router.Deliver(context.Background(), testEmail())
	require.NoError(t, err)
	assert.Equal(t, "primary", result.Provider)
}

func TestRouter_ResetUnknownProvider(t *testing.T) {
	router, _ := newTestRouter(t, nil, nil, &fakeProvider{name: "resend"})

	assert.True(t, router.Reset("resend"))
	assert.False(t, router.Reset("nope"))
}

func TestRouter_HealthSnapshots(t *testing.T) {
	tracker := NewMemoryQuotaTracker(map[string]QuotaLimits{
		"resend": {Daily: 100, Monthly: 3000},
	})
	first := &fakeProvider{name: "resend"}
	second := &fakeProvider{name: "sendgrid"}
	router, _ := newTestRouter(t, tracker, nil, first, second)

	_, err := router.Deliver(context.Background(), testEmail())
	require.NoError(t, err)

	health, err := router.Health(context.Background())
	require.NoError(t, err)
	require.Len(t, health, 2)

	assert.Equal(t, "resend", health[0].Provider)
	assert.Equal(t, "closed", health[0].State)
	assert.Equal(t, int64(1), health[0].Daily.Used)
	assert.Equal(t, int64(100), health[0].Daily.Limit)
	assert.True(t, health[0].Eligible(1))

	assert.Equal(t, "sendgrid", health[1].Provider)
	assert.Equal(t, int64(0), health[1].Daily.Used)
}
