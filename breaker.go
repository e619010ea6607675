package courier

import (
	"sync"
	"time"
)

// BreakerState represents the state of a provider's circuit breaker.
type BreakerState int

const (
	// BreakerClosed indicates normal operation.
	BreakerClosed BreakerState = iota

	// BreakerOpen indicates the provider is blocked from routing.
	BreakerOpen

	// BreakerHalfOpen indicates the provider is being probed for recovery.
	BreakerHalfOpen
)

// String returns the string representation of the breaker state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerListener is notified on every state transition. Used to persist
// transitions and keep metrics current.
type BreakerListener func(provider string, from, to BreakerState)

// CircuitBreaker isolates one provider after repeated failures.
// Transitions: closed -> open after FailureThreshold consecutive failures,
// open -> half-open after Cooldown, half-open -> closed after
// SuccessThreshold successes, half-open -> open on any failure.
type CircuitBreaker struct {
	config       CircuitBreakerConfig
	provider     string
	listener     BreakerListener
	state        BreakerState
	failureCount int
	successCount int
	lastFailTime time.Time
	lastFailure  string
	lastSuccess  time.Time
	mu           sync.Mutex
}

// NewCircuitBreaker creates a circuit breaker for a single provider.
func NewCircuitBreaker(provider string, config CircuitBreakerConfig, listener BreakerListener) *CircuitBreaker {
	return &CircuitBreaker{
		config:   config,
		provider: provider,
		listener: listener,
		state:    BreakerClosed,
	}
}

// Allow reports whether a send may be routed to the provider. An open
// circuit flips to half-open once the cooldown has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	if !cb.config.Enabled {
		return true
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if time.Since(cb.lastFailTime) >= cb.config.Cooldown {
			cb.transition(BreakerHalfOpen)
			cb.successCount = 0
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess records a successful send.
func (cb *CircuitBreaker) RecordSuccess() {
	if !cb.config.Enabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastSuccess = time.Now()
	cb.successCount++

	switch cb.state {
	case BreakerHalfOpen:
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.transition(BreakerClosed)
			cb.failureCount = 0
		}
	case BreakerClosed:
		// Stale failures no longer count against the threshold
		if !cb.lastFailTime.IsZero() && time.Since(cb.lastFailTime) >= cb.config.ResetTimeout {
			cb.failureCount = 0
		}
	}
}

// RecordFailure records a failed send.
func (cb *CircuitBreaker) RecordFailure(err error) {
	if !cb.config.Enabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailTime = time.Now()
	if err != nil {
		cb.lastFailure = err.Error()
	}

	switch cb.state {
	case BreakerClosed:
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		cb.transition(BreakerOpen)
	}
}

// Reset closes the circuit and clears counters. Exposed through the admin
// health API.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != BreakerClosed {
		cb.transition(BreakerClosed)
	}
	cb.failureCount = 0
	cb.successCount = 0
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns the current counters and timestamps.
func (cb *CircuitBreaker) Stats() (state BreakerState, failures int, lastFailure string, lastFailAt, lastSuccessAt time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state, cb.failureCount, cb.lastFailure, cb.lastFailTime, cb.lastSuccess
}

func (cb *CircuitBreaker) setListener(listener BreakerListener) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.listener = listener
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to BreakerState) {
	from := cb.state
	cb.state = to
	if cb.listener != nil && from != to {
		cb.listener(cb.provider, from, to)
	}
}

// BreakerRegistry keys circuit breakers by provider name.
type BreakerRegistry struct {
	config   CircuitBreakerConfig
	listener BreakerListener
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewBreakerRegistry creates a registry applying the same configuration to
// every provider.
func NewBreakerRegistry(config CircuitBreakerConfig, listener BreakerListener) *BreakerRegistry {
	return &BreakerRegistry{
		config:   config,
		listener: listener,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// SetListener installs a transition listener on the registry and every
// breaker created so far.
func (r *BreakerRegistry) SetListener(listener BreakerListener) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listener = listener
	for _, cb := range r.breakers {
		cb.setListener(listener)
	}
}

// Get returns the breaker for a provider, creating it on first use.
func (r *BreakerRegistry) Get(provider string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.breakers[provider]
	if !ok {
		cb = NewCircuitBreaker(provider, r.config, r.listener)
		r.breakers[provider] = cb
	}
	return cb
}
