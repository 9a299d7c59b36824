package ttlmap

import (
	"hash/fnv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hashUint64(k uint64) uint64 {
	h := fnv.New64a()
	var b [8]byte
	for i := range b {
		b[i] = byte(k >> (8 * i))
	}
	h.Write(b[:])
	return h.Sum64()
}

func TestBucketBasic(t *testing.T) {
	const entriesPerBucket = 4
	m, err := New[uint64, int](entriesPerBucket, entriesPerBucket, hashUint64)
	require.NoError(t, err)
	require.Equal(t, 1, m.NumBuckets())

	for i := uint64(0); i < entriesPerBucket; i++ {
		status, val, lock := m.Get(i, 1, 10)
		require.Equal(t, Inserted, status)
		*val = int(i)
		lock.Release()
	}

	for i := uint64(0); i < entriesPerBucket; i++ {
		status, val, lock := m.Get(i, 1, 10)
		assert.Equal(t, Found, status)
		assert.Equal(t, int(i), *val)
		lock.Release()
	}

	status, val, lock := m.Get(100, 1, 10)
	assert.Equal(t, Failed, status)
	assert.Nil(t, val)
	assert.Nil(t, lock)

	// Key 0's entry was planted at now=1 (0 marks a free slot); a call
	// with now at or beyond last_use+timeout treats it as stale and
	// claims it in place.
	status, val, lock = m.Get(0, 11, 10)
	assert.Equal(t, Replaced, status)
	require.NotNil(t, val)
	lock.Release()

	// A still-fresh neighbor remains untouched.
	status, val, lock = m.Get(1, 10, 10)
	assert.Equal(t, Found, status)
	assert.Equal(t, 1, *val)
	lock.Release()
}

func TestRemoveFreesSlot(t *testing.T) {
	m, err := New[uint64, int](4, 4, hashUint64)
	require.NoError(t, err)

	for i := uint64(0); i < 4; i++ {
		_, _, lock := m.Get(i, 1, 10)
		lock.Release()
	}

	status, _, lock := m.Get(99, 1, 10)
	require.Equal(t, Failed, status)
	require.Nil(t, lock)

	require.True(t, m.Remove(2))

	status, val, lock = m.Get(99, 1, 10)
	require.Equal(t, Inserted, status)
	require.NotNil(t, val)
	lock.Release()
}

func TestLookupIgnoresFreshness(t *testing.T) {
	m, err := New[uint64, string](1, 1, hashUint64)
	require.NoError(t, err)

	_, val, lock := m.Get(7, 1, 5)
	*val = "seven"
	lock.Release()

	status, v := m.Lookup(7)
	assert.Equal(t, Found, status)
	assert.Equal(t, "seven", v)

	// Lookup does not expire entries; only a later Get with the call's
	// own timeout does.
	status, v = m.Lookup(7)
	assert.Equal(t, Found, status)
	assert.Equal(t, "seven", v)
}

func TestLookupMiss(t *testing.T) {
	m, err := New[uint64, int](4, 4, hashUint64)
	require.NoError(t, err)

	status, _ := m.Lookup(42)
	assert.Equal(t, Failed, status)
}

func TestCapacityAndOccupied(t *testing.T) {
	m, err := New[uint64, int](16, 4, hashUint64)
	require.NoError(t, err)
	assert.Equal(t, 4, m.NumBuckets())
	assert.Equal(t, 16, m.Capacity())
	assert.Equal(t, 0, m.OccupiedEntries())

	for i := uint64(0); i < 10; i++ {
		_, _, lock := m.Get(i, 1, 100)
		lock.Release()
	}
	assert.Equal(t, 10, m.OccupiedEntries())
}

func TestNewRejectsZeroEntriesPerBucket(t *testing.T) {
	_, err := New[uint64, int](8, 0, hashUint64)
	assert.Error(t, err)
}

func TestNewRejectsNilHash(t *testing.T) {
	_, err := New[uint64, int](8, 4, nil)
	assert.Error(t, err)
}
