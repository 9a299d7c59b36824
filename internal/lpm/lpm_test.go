package lpm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnsupportedKeyLength(t *testing.T) {
	_, err := New(5)
	assert.Error(t, err)
}

func TestLookupReturnsLongestMatch(t *testing.T) {
	l, err := New(4)
	require.NoError(t, err)

	// 10.0.0.0/8
	require.NoError(t, l.Insert(
		[]byte{10, 0, 0, 0}, []byte{10, 255, 255, 255}, 1,
	))
	// 10.0.0.0/24, more specific, different value
	require.NoError(t, l.Insert(
		[]byte{10, 0, 0, 0}, []byte{10, 0, 0, 255}, 2,
	))

	assert.Equal(t, uint32(2), l.Lookup([]byte{10, 0, 0, 42}), "the /24 is more specific")
	assert.Equal(t, uint32(1), l.Lookup([]byte{10, 1, 2, 3}), "outside the /24 but inside the /8")
	assert.Equal(t, Invalid, l.Lookup([]byte{192, 168, 0, 1}))
}

func TestInsertRejectsKeyLengthMismatch(t *testing.T) {
	l, err := New(4)
	require.NoError(t, err)

	err = l.Insert([]byte{1, 2, 3, 4, 5}, []byte{1, 2, 3, 4, 5}, 0)
	assert.Error(t, err)
}

func TestInsertRejectsStartAfterEnd(t *testing.T) {
	l, err := New(4)
	require.NoError(t, err)

	err = l.Insert([]byte{10, 0, 0, 10}, []byte{10, 0, 0, 0}, 0)
	assert.Error(t, err)
}

func TestInsertNonAlignedRangeCoversEveryAddress(t *testing.T) {
	l, err := New(4)
	require.NoError(t, err)

	// An arbitrary, non-power-of-two-aligned range must still decompose
	// into a set of prefixes that covers every address within it.
	require.NoError(t, l.Insert([]byte{10, 0, 0, 5}, []byte{10, 0, 0, 20}, 7))

	for i := 5; i <= 20; i++ {
		assert.Equal(t, uint32(7), l.Lookup([]byte{10, 0, 0, byte(i)}), "address %d should be covered", i)
	}
	assert.Equal(t, Invalid, l.Lookup([]byte{10, 0, 0, 4}))
	assert.Equal(t, Invalid, l.Lookup([]byte{10, 0, 0, 21}))
}

func TestIPv6KeyLength(t *testing.T) {
	l, err := New(16)
	require.NoError(t, err)

	start := make([]byte, 16)
	end := make([]byte, 16)
	start[0], end[0] = 0x20, 0x20
	end[15] = 0xff
	require.NoError(t, l.Insert(start, end, 9))

	probe := make([]byte, 16)
	probe[0] = 0x20
	assert.Equal(t, uint32(9), l.Lookup(probe))
}
