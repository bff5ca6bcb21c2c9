package mute

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestRegistry() (*Registry, *fakeClock) {
	clock := &fakeClock{current: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := NewRegistry()
	r.now = clock.now
	return r, clock
}

func TestMuteSuppressesScope(t *testing.T) {
	r, _ := newTestRegistry()

	r.Mute("temp-01", time.Minute)

	assert.True(t, r.IsMuted("temp-01"))
	assert.False(t, r.IsMuted("temp-02"))
}

func TestMuteExpires(t *testing.T) {
	r, clock := newTestRegistry()

	r.Mute("temp-01", time.Minute)
	assert.True(t, r.IsMuted("temp-01"))

	clock.advance(time.Minute)
	assert.False(t, r.IsMuted("temp-01"))
}

func TestMuteOverwritesExistingRule(t *testing.T) {
	r, clock := newTestRegistry()

	r.Mute("pump-07", time.Second)
	r.Mute("pump-07", time.Hour)

	clock.advance(10 * time.Second)
	assert.True(t, r.IsMuted("pump-07"))
}

func TestIsMutedPrunesExpiredRule(t *testing.T) {
	r, clock := newTestRegistry()

	r.Mute("temp-01", time.Second)
	clock.advance(2 * time.Second)

	assert.False(t, r.IsMuted("temp-01"))

	r.mu.Lock()
	_, exists := r.rules["temp-01"]
	r.mu.Unlock()
	assert.False(t, exists, "expired rule should be removed by the lookup")
}

func TestActiveReturnsOnlyUnexpiredRules(t *testing.T) {
	r, clock := newTestRegistry()

	r.Mute("temp-01", time.Second)
	r.Mute("pump-07", time.Hour)
	clock.advance(10 * time.Second)

	active := r.Active()

	assert.Len(t, active, 1)
	assert.Contains(t, active, "pump-07")
}

func TestIsMutedUnknownScope(t *testing.T) {
	r, _ := newTestRegistry()

	assert.False(t, r.IsMuted("nothing-here"))
}
