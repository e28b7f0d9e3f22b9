package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock(t *testing.T) {
	t.Parallel()

	var clock Clock = RealClock{}
	start := clock.Now()
	assert.False(t, start.IsZero())
	assert.GreaterOrEqual(t, clock.Since(start), time.Duration(0))
}

func TestMockClock(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(base)

	assert.Equal(t, base, clock.Now())

	clock.Advance(250 * time.Millisecond)
	assert.Equal(t, base.Add(250*time.Millisecond), clock.Now())
	assert.Equal(t, 250*time.Millisecond, clock.Since(base))

	clock.Set(base.Add(time.Hour))
	assert.Equal(t, base.Add(time.Hour), clock.Now())
}
