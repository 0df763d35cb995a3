package feed

import "time"

// Backoff yields the reconnect wait sequence: seed, then growing by
// factor up to the cap. Reset on a successful (re)subscription.
type Backoff struct {
	seed   time.Duration
	cap    time.Duration
	factor float64
	next   time.Duration
}

// NewBackoff creates a backoff with the venue reconnect defaults
// (5s seed, 1.5 factor, 60s cap) where arguments are zero.
func NewBackoff(seed, cap time.Duration, factor float64) *Backoff {
	if seed <= 0 {
		seed = 5 * time.Second
	}
	if cap <= 0 {
		cap = 60 * time.Second
	}
	if factor <= 1 {
		factor = 1.5
	}
	return &Backoff{seed: seed, cap: cap, factor: factor, next: seed}
}

// Next returns the current wait and advances the sequence.
func (b *Backoff) Next() time.Duration {
	wait := b.next
	grown := time.Duration(float64(b.next) * b.factor)
	if grown > b.cap {
		grown = b.cap
	}
	b.next = grown
	return wait
}

// Reset restarts the sequence from the seed.
func (b *Backoff) Reset() {
	b.next = b.seed
}
