package courier

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Cooldown:         50 * time.Millisecond,
		ResetTimeout:     time.Hour,
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("resend", testBreakerConfig(), nil)
	sendErr := errors.New("boom")

	cb.RecordFailure(sendErr)
	cb.RecordFailure(sendErr)
	assert.Equal(t, BreakerClosed, cb.State())
	assert.True(t, cb.Allow())

	cb.RecordFailure(sendErr)
	assert.Equal(t, BreakerOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_HalfOpenAfterCooldown(t *testing.T) {
	cb := NewCircuitBreaker("resend", testBreakerConfig(), nil)
	for i := 0; i < 3; i++ {
		cb.RecordFailure(errors.New("boom"))
	}
	require.Equal(t, BreakerOpen, cb.State())

	time.Sleep(60 * time.Millisecond)
	assert.True(t, cb.Allow())
	assert.Equal(t, BreakerHalfOpen, cb.State())
}

func TestCircuitBreaker_ClosesAfterSuccessThreshold(t *testing.T) {
	cb := NewCircuitBreaker("resend", testBreakerConfig(), nil)
	for i := 0; i < 3; i++ {
		cb.RecordFailure(errors.New("boom"))
	}
	time.Sleep(60 * time.Millisecond)
	require.True(t, cb.Allow())

	cb.RecordSuccess()
	assert.Equal(t, BreakerHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, BreakerClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("resend", testBreakerConfig(), nil)
	for i := 0; i < 3; i++ {
		cb.RecordFailure(errors.New("boom"))
	}
	time.Sleep(60 * time.Millisecond)
	require.True(t, cb.Allow())
	require.Equal(t, BreakerHalfOpen, cb.State())

	cb.RecordFailure(errors.New("still down"))
	assert.Equal(t, BreakerOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker("resend", testBreakerConfig(), nil)
	for i := 0; i < 3; i++ {
		cb.RecordFailure(errors.New("boom"))
	}
	require.Equal(t, BreakerOpen, cb.State())

	cb.Reset()
	assert.Equal(t, BreakerClosed, cb.State())

	state, failures, _, _, _ := cb.Stats()
	assert.Equal(t, BreakerClosed, state)
	assert.Equal(t, 0, failures)
}

func TestCircuitBreaker_Disabled(t *testing.T) {
	cb := NewCircuitBreaker("resend", CircuitBreakerConfig{Enabled: false}, nil)
	for i := 0; i < 10; i++ {
		cb.RecordFailure(errors.New("boom"))
	}
	assert.Equal(t, BreakerClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_ListenerReceivesTransitions(t *testing.T) {
	type transition struct {
		provider string
		from, to BreakerState
	}
	var transitions []transition

	cb := NewCircuitBreaker("resend", testBreakerConfig(), func(provider string, from, to BreakerState) {
		transitions = append(transitions, transition{provider, from, to})
	})

	for i := 0; i < 3; i++ {
		cb.RecordFailure(errors.New("boom"))
	}
	time.Sleep(60 * time.Millisecond)
	cb.Allow()
	cb.RecordSuccess()
	cb.RecordSuccess()

	require.Len(t, transitions, 3)
	assert.Equal(t, transition{"resend", BreakerClosed, BreakerOpen}, transitions[0])
	assert.Equal(t, transition{"resend", BreakerOpen, BreakerHalfOpen}, transitions[1])
	assert.Equal(t, transition{"resend", BreakerHalfOpen, BreakerClosed}, transitions[2])
}

func TestBreakerRegistry_SharedPerProvider(t *testing.T) {
	reg := NewBreakerRegistry(testBreakerConfig(), nil)

	a := reg.Get("resend")
	b := reg.Get("resend")
	c := reg.Get("sendgrid")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestBreakerRegistry_SetListenerCoversExistingBreakers(t *testing.T) {
	reg := NewBreakerRegistry(testBreakerConfig(), nil)
	cb := reg.Get("resend")

	var called bool
	reg.SetListener(func(provider string, from, to BreakerState) { called = true })

	for i := 0; i < 3; i++ {
		cb.RecordFailure(errors.New("boom"))
	}
	assert.True(t, called)
}

func TestBreakerRegistry_SetListenerDuringSends(t *testing.T) {
	reg := NewBreakerRegistry(testBreakerConfig(), nil)
	cb := reg.Get("resend")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			cb.RecordFailure(errors.New("boom"))
			cb.RecordSuccess()
		}
	}()

	var fired atomic.Bool
	for i := 0; i < 100; i++ {
		reg.SetListener(func(provider string, from, to BreakerState) { fired.Store(true) })
	}
	<-done

	for i := 0; i < 3; i++ {
		cb.RecordFailure(errors.New("boom"))
	}
	assert.True(t, fired.Load())
}
