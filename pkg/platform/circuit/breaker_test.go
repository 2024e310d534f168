package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	b := New("mirror", WithFailureThreshold(3), WithCooldown(time.Minute), WithClock(clock.Now))

	assert.False(t, b.RecordFailure())
	assert.False(t, b.RecordFailure())
	assert.True(t, b.RecordFailure())
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerAllowsTrialAfterCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	b := New("mirror", WithFailureThreshold(1), WithCooldown(time.Minute), WithClock(clock.Now))
	b.RecordFailure()

	clock.Advance(59 * time.Second)
	assert.False(t, b.Allow())

	clock.Advance(time.Second)
	assert.True(t, b.Allow(), "first caller after cooldown gets the trial")
	assert.Equal(t, StateHalfOpen, b.State())
	assert.False(t, b.Allow(), "only one trial at a time")

	t.Run("failed trial re-opens", func(t *testing.T) {
		assert.True(t, b.RecordFailure())
		assert.Equal(t, StateOpen, b.State())
	})

	t.Run("successful trial closes", func(t *testing.T) {
		clock.Advance(time.Minute)
		assert.True(t, b.Allow())
		assert.True(t, b.RecordSuccess())
		assert.Equal(t, StateClosed, b.State())
		assert.True(t, b.Allow())
	})
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := New("mirror", WithFailureThreshold(2))
	b.RecordFailure()
	assert.False(t, b.RecordSuccess())
	assert.False(t, b.RecordFailure())
	assert.Equal(t, StateClosed, b.State())
}
