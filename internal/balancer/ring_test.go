package balancer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingWeightedDistribution(t *testing.T) {
	reals := []Real{
		{Weight: 1},
		{Weight: 2},
	}
	ring := NewRing(reals, 0, len(reals))
	require.Equal(t, 3, ring.Len())

	counts := make(map[uint32]int)
	const samples = 40000
	for i := uint64(0); i < samples; i++ {
		counts[ring.Get(i*2654435761)]++
	}
	ratio := float64(counts[1]) / float64(counts[0])
	assert.InDelta(t, 2.0, ratio, 0.2)
}

func TestRingSkipsDisabledReals(t *testing.T) {
	reals := []Real{
		{Weight: 5, Flags: RealDisabled},
		{Weight: 1},
	}
	ring := NewRing(reals, 0, len(reals))
	require.Equal(t, 1, ring.Len())
	for i := uint64(0); i < 10; i++ {
		assert.Equal(t, uint32(1), ring.Get(i))
	}
}

func TestRingEmptyReturnsInvalid(t *testing.T) {
	ring := NewRing(nil, 0, 0)
	assert.Equal(t, RingInvalid, ring.Get(42))
}
