package intervalcounter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsZeroMaxTimeout(t *testing.T) {
	_, err := New(0, 0)
	assert.Error(t, err)
}

func TestCounterTracksOverlappingIntervals(t *testing.T) {
	c, err := New(0, 100)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), c.MaxTimeout())
	assert.Equal(t, uint32(0), c.Now())

	c.Put(0, 50, 1)
	assert.Equal(t, uint64(1), c.CurrentCount())

	c.Put(0, 30, 1)
	assert.Equal(t, uint64(2), c.CurrentCount())

	c.AdvanceTime(30)
	assert.Equal(t, uint32(30), c.Now())
	assert.Equal(t, uint64(1), c.CurrentCount(), "the 30-wide interval expired at 30")

	c.AdvanceTime(50)
	assert.Equal(t, uint64(0), c.CurrentCount(), "the 50-wide interval expired at 50")
}

func TestCounterAdvanceTimeRejectsBackwardsMove(t *testing.T) {
	c, err := New(50, 100)
	require.NoError(t, err)

	assert.Panics(t, func() {
		c.AdvanceTime(49)
	})
}

func TestCounterPutRejectsTimeoutPastMax(t *testing.T) {
	c, err := New(0, 100)
	require.NoError(t, err)

	assert.Panics(t, func() {
		c.Put(0, 101, 1)
	})
}

func TestCounterHandlesManyOverlappingIntervalsAcrossGenerations(t *testing.T) {
	c, err := New(0, 10)
	require.NoError(t, err)

	for i := uint32(0); i < 5; i++ {
		c.Put(i, 10, 1)
	}
	// At now=4 every interval [i, i+10) for i in 0..4 covers now.
	c.AdvanceTime(4)
	assert.Equal(t, uint64(5), c.CurrentCount())

	// Advance well past the ring's period so reused slots exercise the
	// generation-tag disambiguation rather than stale leftover deltas.
	c.AdvanceTime(25)
	assert.Equal(t, uint64(0), c.CurrentCount())
}
