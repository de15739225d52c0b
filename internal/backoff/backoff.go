// Package backoff computes reconnect delays: exponential growth from a base
// interval up to a cap, with symmetric jitter.
package backoff

import (
	"math/rand/v2"
	"time"
)

// Backoff is not safe for concurrent use.
type Backoff struct {
	base    time.Duration
	max     time.Duration
	jitter  float64
	attempt int
}

// New creates a Backoff. jitter is a ratio in [0, 1]: 0.2 means ±20%.
func New(base, max time.Duration, jitter float64) *Backoff {
	return &Backoff{base: base, max: max, jitter: jitter}
}

// NewDefault returns a Backoff with base 1s, max 30s and ±20% jitter.
func NewDefault() *Backoff {
	return New(time.Second, 30*time.Second, 0.2)
}

// Next returns the delay before the next attempt: base * 2^attempt capped at
// max, then jittered.
func (b *Backoff) Next() time.Duration {
	delay := b.max
	if b.attempt < 63 && b.base <= b.max>>b.attempt {
		delay = b.base << b.attempt
	}

	if b.jitter > 0 {
		factor := 1 + (rand.Float64()*2-1)*b.jitter
		delay = time.Duration(float64(delay) * factor)
	}

	b.attempt++
	return delay
}

// Reset starts over from the base interval. Call it after a successful connect.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt returns how many delays were handed out since the last Reset.
func (b *Backoff) Attempt() int {
	return b.attempt
}
