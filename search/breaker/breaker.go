// Package breaker implements the per-provider circuit breaker. The state
// machine is exactly: closed → open at 5 consecutive failures; open →
// half-open after 60 s quiet (checked on the next attempt); half-open →
// closed after 2 consecutive successes, reopening immediately on any
// failure. Successes while closed decay the failure count by one.
package breaker

import (
	"log/slog"
	"sync"
	"time"
)

// State is the breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 2
	defaultOpenTimeout      = 60 * time.Second
)

// Breaker guards one provider. All methods are safe for concurrent use.
type Breaker struct {
	mu               sync.Mutex
	name             string
	state            State
	failures         int
	successes        int
	lastFailure      time.Time
	lastTransition   time.Time
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
	now              func() time.Time

	// Observability counters.
	fastFails int64
	trips     int64
}

// New creates a breaker with the standard thresholds.
func New(name string) *Breaker {
	return &Breaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
		openTimeout:      defaultOpenTimeout,
		now:              time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (b *Breaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Allow reports whether a call may proceed. An open breaker past its quiet
// window transitions to half-open and admits the probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailure) > b.openTimeout {
			b.transition(StateHalfOpen)
			b.successes = 0
			return true
		}
		b.fastFails++
		return false
	}
	return true
}

// RecordSuccess accounts a successful provider call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		if b.failures > 0 {
			b.failures--
		}
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.failures = 0
			b.transition(StateClosed)
		}
	}
}

// RecordFailure accounts a failed provider call (timeout, non-2xx, or
// transport error). Fast-fails are not reported here; they are not failures.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.trips++
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.trips++
		b.transition(StateOpen)
	}
}

// transition must be called with the lock held.
func (b *Breaker) transition(next State) {
	if b.state == next {
		return
	}
	slog.Info("circuit breaker transition", "breaker", b.name, "from", b.state, "to", next, "failures", b.failures)
	b.state = next
	b.lastTransition = b.now()
}

// State returns the current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot is a breaker view for health and diagnostics endpoints.
type Snapshot struct {
	Name           string    `json:"name"`
	State          State     `json:"state"`
	Failures       int       `json:"failures"`
	FastFails      int64     `json:"fastFails"`
	Trips          int64     `json:"trips"`
	LastTransition time.Time `json:"lastTransition,omitempty"`
}

// Snapshot returns the current breaker counters.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:           b.name,
		State:          b.state,
		Failures:       b.failures,
		FastFails:      b.fastFails,
		Trips:          b.trips,
		LastTransition: b.lastTransition,
	}
}
