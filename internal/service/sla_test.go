package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreachAfterTwentyFiveHours(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	created := now.Add(-25 * time.Hour)

	assert.InDelta(t, 25.0, HoursElapsed(created, now), 1e-9)
	assert.True(t, IsBreached(&created, 24, now))
}

func TestBreachBoundaryIsStrict(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	for _, sla := range []int{4, 6, 12, 24} {
		exact := now.Add(-time.Duration(sla) * time.Hour)
		assert.False(t, IsBreached(&exact, sla, now), "sla %d at limit", sla)

		over := exact.Add(-time.Millisecond)
		assert.True(t, IsBreached(&over, sla, now), "sla %d past limit", sla)
	}
}

func TestMissingCreatedAtNeverBreached(t *testing.T) {
	assert.False(t, IsBreached(nil, 0, time.Now()))
	assert.False(t, IsBreached(nil, 24, time.Now().Add(1000*time.Hour)))
}

func TestClockInUsesLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	assert.Equal(t, loc, ClockIn(loc)().Location())
	assert.NotNil(t, ClockIn(nil)())
}
