// Package breaker implements a per-resource circuit breaker.
//
// Each named resource gets an independent CLOSED/OPEN/HALF_OPEN state
// machine. A resource in OPEN never executes until the recovery timeout
// has elapsed, at which point a single probing call is allowed
// (HALF_OPEN). Success moves it back to CLOSED only after the configured
// number of consecutive probe successes; any failure while HALF_OPEN
// returns it to OPEN and restarts the timer.
package breaker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the circuit state for one resource.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Defaults match the production tuning of the fetch orchestrator.
const (
	DefaultFailureThreshold         = 3
	DefaultRecoveryTimeout          = 120 * time.Second
	DefaultHalfOpenSuccessThreshold = 1
)

// circuit is the per-resource record.
type circuit struct {
	state             State
	failureCount      int
	lastFailureAt     time.Time
	halfOpenSuccesses int
}

// Snapshot is a diagnostics view of one resource's circuit.
type Snapshot struct {
	State             State         `json:"state"`
	Failures          int           `json:"failures"`
	CooldownRemaining time.Duration `json:"cooldown_remaining"`
	CanCall           bool          `json:"can_call"`
}

// Breaker tracks circuits keyed by resource name.
type Breaker struct {
	mu       sync.Mutex
	circuits map[string]*circuit

	failureThreshold         int
	recoveryTimeout          time.Duration
	halfOpenSuccessThreshold int

	logger *zap.SugaredLogger
	now    func() time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold sets how many consecutive failures open a circuit.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) { b.failureThreshold = n }
}

// WithRecoveryTimeout sets how long an open circuit holds before a probe.
func WithRecoveryTimeout(d time.Duration) Option {
	return func(b *Breaker) { b.recoveryTimeout = d }
}

// WithHalfOpenSuccessThreshold sets how many consecutive probe successes
// close a half-open circuit.
func WithHalfOpenSuccessThreshold(n int) Option {
	return func(b *Breaker) { b.halfOpenSuccessThreshold = n }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New creates a Breaker with the default thresholds.
func New(log *zap.SugaredLogger, opts ...Option) *Breaker {
	b := &Breaker{
		circuits:                 make(map[string]*circuit),
		failureThreshold:         DefaultFailureThreshold,
		recoveryTimeout:          DefaultRecoveryTimeout,
		halfOpenSuccessThreshold: DefaultHalfOpenSuccessThreshold,
		logger:                   log,
		now:                      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = zap.NewNop().Sugar()
	}
	return b
}

// get returns the circuit for name, creating a closed one if absent.
// Caller must hold b.mu.
func (b *Breaker) get(name string) *circuit {
	c, ok := b.circuits[name]
	if !ok {
		c = &circuit{state: Closed}
		b.circuits[name] = c
	}
	return c
}

// CanCall reports whether a call to name may proceed. It returns false
// iff the circuit is OPEN and the recovery timeout has not elapsed. The
// first call after the timeout elapses transitions the circuit to
// HALF_OPEN and is allowed through as the probe.
func (b *Breaker) CanCall(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(name)
	if c.state != Open {
		return true
	}

	if b.now().Sub(c.lastFailureAt) < b.recoveryTimeout {
		return false
	}

	c.state = HalfOpen
	c.halfOpenSuccesses = 0
	b.logger.Infow("Circuit half-open, allowing probe",
		"source", name)
	return true
}

// RecordSuccess registers a successful call against name.
func (b *Breaker) RecordSuccess(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(name)
	switch c.state {
	case Closed:
		c.failureCount = 0
	case HalfOpen:
		c.halfOpenSuccesses++
		if c.halfOpenSuccesses >= b.halfOpenSuccessThreshold {
			c.state = Closed
			c.failureCount = 0
			c.halfOpenSuccesses = 0
			b.logger.Infow("Circuit closed after successful probe",
				"source", name)
		}
	case Open:
		// Success reported for an open circuit means the caller bypassed
		// CanCall; treat it as a probe success.
		c.state = HalfOpen
		c.halfOpenSuccesses = 1
		if c.halfOpenSuccesses >= b.halfOpenSuccessThreshold {
			c.state = Closed
			c.failureCount = 0
			c.halfOpenSuccesses = 0
		}
	}
}

// RecordFailure registers a failed call against name.
func (b *Breaker) RecordFailure(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(name)
	c.lastFailureAt = b.now()

	switch c.state {
	case HalfOpen:
		// Failed probe: reopen and restart the recovery timer
		c.state = Open
		c.halfOpenSuccesses = 0
		b.logger.Warnw("Circuit reopened, probe failed",
			"source", name,
			"failure_count", c.failureCount)
	case Closed:
		c.failureCount++
		if c.failureCount >= b.failureThreshold {
			c.state = Open
			b.logger.Warnw("Circuit opened",
				"source", name,
				"failure_count", c.failureCount)
		}
	case Open:
		c.failureCount++
	}
}

// State returns a diagnostics snapshot for name.
func (b *Breaker) State(name string) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(name)
	snap := Snapshot{
		State:    c.state,
		Failures: c.failureCount,
		CanCall:  true,
	}
	if c.state == Open {
		remaining := b.recoveryTimeout - b.now().Sub(c.lastFailureAt)
		if remaining > 0 {
			snap.CooldownRemaining = remaining
			snap.CanCall = false
		}
	}
	return snap
}

// Reset returns name's circuit to CLOSED with cleared counters.
func (b *Breaker) Reset(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.circuits[name] = &circuit{state: Closed}
}
