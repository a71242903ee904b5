package station

import (
	"sync"
	"time"
)

// Breaker halts reconnection attempts after consecutive failures and lets a
// single probe through once the cooldown elapses.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	openUntil time.Time
}

// NewBreaker creates a breaker that opens after threshold consecutive
// failures and stays open for cooldown
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// Allow reports whether an attempt may proceed. While open it returns false
// until the cooldown passes, then admits one half-open probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return true
	}
	if time.Now().Before(b.openUntil) {
		return false
	}

	// Half-open: one probe; a failure re-opens immediately.
	b.failures = b.threshold - 1
	return true
}

// Failure records a failed attempt, opening the breaker at the threshold
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.failures >= b.threshold {
		b.openUntil = time.Now().Add(b.cooldown)
	}
}

// Success closes the breaker
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.openUntil = time.Time{}
}

// RemainingCooldown returns how long until the next attempt is admitted;
// zero when the breaker is closed or already past its cooldown
func (b *Breaker) RemainingCooldown() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return 0
	}
	remaining := time.Until(b.openUntil)
	if remaining < 0 {
		return 0
	}
	return remaining
}
