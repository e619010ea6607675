package courier

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/lattiq/courier/internal/core"
)

// DeliveryRecord describes one provider attempt, successful or not.
type DeliveryRecord struct {
	Provider   string
	MessageID  string
	Recipients int
	Priority   Priority
	Subject    string
	Duration   time.Duration
	Err        error
}

// DeliveryObserver receives a record after every provider attempt.
type DeliveryObserver func(ctx context.Context, rec DeliveryRecord)

// routedProvider is one entry in the routing table.
type routedProvider struct {
	name     string
	priority int
	provider core.Provider
	breaker  *CircuitBreaker
}

// Router walks the provider list in priority order and delivers through the
// first provider that is eligible: circuit not open and quota headroom for
// the message's recipients. Retryable provider failures fall through to the
// next provider; permanent failures abort.
type Router struct {
	providers []routedProvider
	quotas    QuotaTracker
	observer  DeliveryObserver
}

// NewRouter builds a router over the given providers. The slice is sorted
// by ascending priority, ties keeping declaration order.
func NewRouter(providers []routedProvider, quotas QuotaTracker, observer DeliveryObserver) *Router {
	sorted := make([]routedProvider, len(providers))
	copy(sorted, providers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].priority < sorted[j].priority
	})

	return &Router{
		providers: sorted,
		quotas:    quotas,
		observer:  observer,
	}
}

// Deliver routes a single email. Returns the result of the successful
// attempt, a permanent provider error, or a *RouteError when the whole
// list is exhausted.
func (r *Router) Deliver(ctx context.Context, email *core.Email) (*core.SendResult, error) {
	recipients := email.TotalRecipients()

	var attempted, skipped int
	var lastErr error

	for i := range r.providers {
		rp := &r.providers[i]

		if !rp.breaker.Allow() {
			skipped++
			continue
		}

		if err := r.quotas.Allow(ctx, rp.name, recipients); err != nil {
			var qe *core.QuotaError
			if errors.As(err, &qe) {
				skipped++
				lastErr = err
				continue
			}
			// Tracker infrastructure failure, not a routing decision
			return nil, err
		}

		attempted++
		start := time.Now()
		result, err := rp.provider.Send(ctx, email)
		r.observe(ctx, rp.name, email, result, time.Since(start), err)

		if err == nil {
			rp.breaker.RecordSuccess()
			// The message is already out; a bookkeeping failure must not
			// surface as a send failure.
			_ = r.quotas.Record(ctx, rp.name, recipients)
			return result, nil
		}

		rp.breaker.RecordFailure(err)
		if !core.IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, &RouteError{
		Attempted: attempted,
		Skipped:   skipped,
		LastErr:   lastErr,
	}
}

// Health reports the routing state of every provider in priority order.
func (r *Router) Health(ctx context.Context) ([]core.ProviderHealth, error) {
	out := make([]core.ProviderHealth, 0, len(r.providers))
	for i := range r.providers {
		rp := &r.providers[i]

		state, failures, lastFailure, lastFailAt, lastSuccessAt := rp.breaker.Stats()
		daily, monthly, err := r.quotas.Snapshot(ctx, rp.name)
		if err != nil {
			return nil, err
		}

		out = append(out, core.ProviderHealth{
			Provider:            rp.name,
			Priority:            rp.priority,
			State:               state.String(),
			ConsecutiveFailures: failures,
			LastError:           lastFailure,
			LastErrorAt:         lastFailAt,
			LastSuccessAt:       lastSuccessAt,
			Daily:               daily,
			Monthly:             monthly,
		})
	}
	return out, nil
}

// Reset closes the named provider's circuit and clears its counters.
// Returns false if the provider is unknown.
func (r *Router) Reset(name string) bool {
	for i := range r.providers {
		if r.providers[i].name == name {
			r.providers[i].breaker.Reset()
			return true
		}
	}
	return false
}

func (r *Router) observe(ctx context.Context, provider string, email *core.Email, result *core.SendResult, d time.Duration, err error) {
	if r.observer == nil {
		return
	}
	rec := DeliveryRecord{
		Provider:   provider,
		Recipients: email.TotalRecipients(),
		Priority:   email.Priority,
		Subject:    email.Subject,
		Duration:   d,
		Err:        err,
	}
	if result != nil {
		rec.MessageID = result.MessageID
	}
	r.observer(ctx, rec)
}
