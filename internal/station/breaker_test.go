package station

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerAllowsUntilThreshold(t *testing.T) {
	b := NewBreaker(3, time.Hour)

	assert.True(t, b.Allow())
	b.Failure()
	assert.True(t, b.Allow())
	b.Failure()
	assert.True(t, b.Allow())
	b.Failure()

	assert.False(t, b.Allow(), "breaker opens at the threshold")
	assert.Greater(t, b.RemainingCooldown(), time.Duration(0))
}

func TestBreakerSuccessResets(t *testing.T) {
	b := NewBreaker(2, time.Hour)

	b.Failure()
	b.Failure()
	assert.False(t, b.Allow())

	b.Success()
	assert.True(t, b.Allow())
	assert.Zero(t, b.RemainingCooldown())

	// The failure count starts from zero again.
	b.Failure()
	assert.True(t, b.Allow())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := NewBreaker(2, 10*time.Millisecond)

	b.Failure()
	b.Failure()
	assert.False(t, b.Allow())

	time.Sleep(20 * time.Millisecond)

	// Cooldown elapsed: exactly one probe is admitted.
	assert.True(t, b.Allow())

	// A failed probe re-opens immediately.
	b.Failure()
	assert.False(t, b.Allow())
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	b := NewBreaker(2, 10*time.Millisecond)

	b.Failure()
	b.Failure()
	time.Sleep(20 * time.Millisecond)

	assert.True(t, b.Allow())
	b.Success()

	assert.True(t, b.Allow())
	assert.True(t, b.Allow())
}

func TestBreakerRemainingCooldownClosedIsZero(t *testing.T) {
	b := NewBreaker(3, time.Hour)
	assert.Zero(t, b.RemainingCooldown())

	b.Failure()
	assert.Zero(t, b.RemainingCooldown(), "below threshold the breaker is closed")
}
