package backoff

import (
	"fmt"
	"time"
)

// CircuitState is one of a CircuitBreaker's three states.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig parameterizes a CircuitBreaker, adapted from the
// teacher's internal/concurrency/backoff.go CircuitBreakerConfig.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int           // consecutive failures before opening
	RecoveryTimeout  time.Duration // time to wait before trying half-open
	SuccessThreshold int           // successes needed to close from half-open
}

// DefaultCircuitBreakerConfig matches the teacher's own defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 3,
	}
}

// CircuitBreaker wraps the feed's reconnect attempt with a resilience layer
// on top of Backoff's per-attempt delay: once FailureThreshold consecutive
// connect failures occur it stops attempting to dial entirely until
// RecoveryTimeout has elapsed, rather than hammering a downed upstream at
// the backoff-curve's capped interval forever. Adapted from the teacher's
// internal/concurrency/backoff.go CircuitBreaker (same Closed/Open/HalfOpen
// state machine and threshold fields), dropping ExpectedFailures/Timeout —
// this breaker has exactly one caller (the feed reconnect loop) and no
// classification of "expected" transport errors to carve out.
type CircuitBreaker struct {
	name         string
	state        CircuitState
	failures     int
	lastFailTime time.Time
	successes    int
	cfg          CircuitBreakerConfig
}

// NewCircuitBreaker builds a CircuitBreaker in the closed state.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout == 0 {
		cfg.RecoveryTimeout = 60 * time.Second
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 3
	}
	return &CircuitBreaker{name: cfg.Name, cfg: cfg}
}

// Call runs fn if the circuit permits it, recording the outcome against the
// state machine. When open and not yet past RecoveryTimeout, fn is not
// invoked at all and Call returns immediately with an error.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.canExecute() {
		return fmt.Errorf("backoff: circuit breaker %s is open", cb.name)
	}
	err := fn()
	cb.recordResult(err)
	return err
}

// State reports the breaker's current state, for logging.
func (cb *CircuitBreaker) State() CircuitState {
	return cb.state
}

func (cb *CircuitBreaker) canExecute() bool {
	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.lastFailTime) >= cb.cfg.RecoveryTimeout {
			cb.state = StateHalfOpen
			cb.successes = 0
			return true
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordResult(err error) {
	failed := err != nil

	switch cb.state {
	case StateClosed:
		if failed {
			cb.failures++
			cb.lastFailTime = time.Now()
			if cb.failures >= cb.cfg.FailureThreshold {
				cb.state = StateOpen
			}
		} else {
			cb.failures = 0
		}

	case StateHalfOpen:
		if failed {
			cb.state = StateOpen
			cb.failures++
			cb.lastFailTime = time.Now()
		} else {
			cb.successes++
			if cb.successes >= cb.cfg.SuccessThreshold {
				cb.state = StateClosed
				cb.failures = 0
			}
		}
	}
}
