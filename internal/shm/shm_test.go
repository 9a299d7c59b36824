package shm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHeapRegionCloseIsSafe(t *testing.T) {
	r, err := NewHeapRegion(4096)
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), r.Size())
	assert.NotZero(t, r.BaseAddr())

	require.NoError(t, r.Close())
	// Closing a heap-backed region must never call munmap on ordinary Go
	// memory; a second Close is a documented no-op.
	require.NoError(t, r.Close())
}

func TestNewRegionRejectsZeroSize(t *testing.T) {
	_, err := NewHeapRegion(0)
	assert.Error(t, err)

	_, err = NewAnonRegion(0)
	assert.Error(t, err)
}

func TestArenaBallocRequiresDonatedExtent(t *testing.T) {
	region, err := NewHeapRegion(1024)
	require.NoError(t, err)
	t.Cleanup(func() { region.Close() })

	a := NewArena(region)
	_, ok := a.Balloc(16)
	assert.False(t, ok, "Balloc before ArenaPut must fail, not panic")

	require.NoError(t, a.ArenaPut(0, region.Size()))
	off, ok := a.Balloc(16)
	assert.True(t, ok)
	// Offset 0 is withheld: it doubles as relptr's NULL sentinel, so the
	// first live allocation out of an extent donated from region offset 0
	// must start at the next size class up instead.
	assert.Equal(t, uint64(minClassSize), off)
}

func TestArenaBallocBfreeRoundTripReusesClass(t *testing.T) {
	region, err := NewHeapRegion(4096)
	require.NoError(t, err)
	t.Cleanup(func() { region.Close() })

	a := NewArena(region)
	require.NoError(t, a.ArenaPut(0, region.Size()))

	off1, ok := a.Balloc(16)
	require.True(t, ok)
	assert.Equal(t, uint64(16), a.Outstanding())

	a.Bfree(off1, 16)
	assert.Equal(t, uint64(0), a.Outstanding())

	off2, ok := a.Balloc(16)
	require.True(t, ok)
	assert.Equal(t, off1, off2, "a freed block of the same class should be reused before bumping further")
}

func TestArenaBallocRoundsUpToSizeClass(t *testing.T) {
	region, err := NewHeapRegion(4096)
	require.NoError(t, err)
	t.Cleanup(func() { region.Close() })

	a := NewArena(region)
	require.NoError(t, a.ArenaPut(0, region.Size()))

	off1, ok := a.Balloc(3) // rounds up to minClassSize (16)
	require.True(t, ok)
	off2, ok := a.Balloc(16)
	require.True(t, ok)
	assert.Equal(t, off1+16, off2)
}

func TestArenaOutOfMemory(t *testing.T) {
	// 48 bytes donated from offset 0: the first minClassSize (16) bytes are
	// withheld from the NULL-sentinel reservation, leaving exactly two
	// 16-byte classes available.
	region, err := NewHeapRegion(48)
	require.NoError(t, err)
	t.Cleanup(func() { region.Close() })

	a := NewArena(region)
	require.NoError(t, a.ArenaPut(0, region.Size()))

	_, ok := a.Balloc(16)
	require.True(t, ok)
	_, ok = a.Balloc(16)
	require.True(t, ok)
	_, ok = a.Balloc(16)
	assert.False(t, ok, "the extent is exhausted")
}

func TestArenaPutRejectsExtentPastRegion(t *testing.T) {
	region, err := NewHeapRegion(16)
	require.NoError(t, err)
	t.Cleanup(func() { region.Close() })

	a := NewArena(region)
	assert.Error(t, a.ArenaPut(0, 17))
	assert.Error(t, a.ArenaPut(0, 0))
}
