// Package backoff implements the reconnect delay policy of spec §4.9,
// adapted from the teacher's internal/concurrency/backoff.go
// ExponentialBackoff to the exact formula spec.md normatively fixes:
//
//	delay = min(base * 2^min(attempt,10), max) + delay*jitter_factor*U[0,1)
//
// attempt increments on every failure and resets to zero on success.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Config parameterizes the backoff curve (spec §6 WebSocket group).
type Config struct {
	Base         time.Duration
	Max          time.Duration
	JitterFactor float64
}

// DefaultConfig matches spec.md's suggested defaults.
func DefaultConfig() Config {
	return Config{
		Base:         500 * time.Millisecond,
		Max:          30 * time.Second,
		JitterFactor: 0.2,
	}
}

// Backoff tracks the reconnect attempt counter for one feed connection.
type Backoff struct {
	cfg     Config
	attempt int
}

// New creates a Backoff with the given configuration.
func New(cfg Config) *Backoff {
	return &Backoff{cfg: cfg}
}

// NextDelay returns the delay to sleep before the next reconnect attempt and
// increments the internal attempt counter.
func (b *Backoff) NextDelay() time.Duration {
	capped := math.Min(
		float64(b.cfg.Base)*math.Pow(2, float64(min(b.attempt, 10))),
		float64(b.cfg.Max),
	)
	jitter := capped * b.cfg.JitterFactor * rand.Float64()
	b.attempt++
	return time.Duration(capped + jitter)
}

// Reset zeroes the attempt counter after a successful subscribe (spec §4.9).
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt returns the current attempt count, for logging/metrics.
func (b *Backoff) Attempt() int {
	return b.attempt
}
