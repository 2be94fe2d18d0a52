// Package resilience guards calls to remote model providers. A
// circuit breaker fails fast once a provider is clearly down, so the
// engine can degrade immediately instead of paying a timeout on every
// request; bounded retries absorb transient faults before the breaker
// counts them.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker is rejecting calls.
var ErrOpen = errors.New("provider circuit open")

// breakerState tracks where the breaker is in its lifecycle.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker is a circuit breaker over a single provider. After
// maxFailures consecutive failures it rejects calls outright; once
// cooldown elapses it lets one probe call through and closes again on
// success.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration

	mu          sync.Mutex
	state       breakerState
	failures    int
	lastFailure time.Time
}

// BreakerOption configures a Breaker.
type BreakerOption func(*Breaker)

// WithMaxFailures sets consecutive failures before the breaker opens.
func WithMaxFailures(n int) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.maxFailures = n
		}
	}
}

// WithCooldown sets how long the breaker stays open before probing.
func WithCooldown(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// NewBreaker creates a breaker named after the provider it guards.
// Defaults: 5 consecutive failures, 30 second cooldown.
func NewBreaker(name string, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		name:        name,
		maxFailures: 5,
		cooldown:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the provider name the breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// StateName reports the current state for diagnostics.
func (b *Breaker) StateName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.effectiveState().String()
}

// effectiveState folds cooldown expiry into the reported state.
// Callers must hold b.mu.
func (b *Breaker) effectiveState() breakerState {
	if b.state == stateOpen && time.Since(b.lastFailure) > b.cooldown {
		return stateHalfOpen
	}
	return b.state
}

// Do runs fn through the breaker. When the breaker is open it returns
// ErrOpen without invoking fn.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	state := b.effectiveState()
	if state == stateOpen {
		b.mu.Unlock()
		return ErrOpen
	}
	b.state = state
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		b.lastFailure = time.Now()
		// A failed half-open probe reopens immediately.
		if b.failures >= b.maxFailures || state == stateHalfOpen {
			b.state = stateOpen
		}
		return err
	}
	b.failures = 0
	b.state = stateClosed
	return nil
}

// Do runs fn through the breaker and returns its value. The zero value
// of T comes back with ErrOpen when the breaker rejects the call.
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var result T
	err := b.Do(func() error {
		var callErr error
		result, callErr = fn()
		return callErr
	})
	return result, err
}
