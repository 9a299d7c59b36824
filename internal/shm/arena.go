package shm

import (
	"fmt"
	"math/bits"
)

// minClassSize is the smallest allocation granularity; every allocation is
// word-aligned and rounds up to the nearest power-of-two size class of at
// least minClassSize, per spec §4.1 ("Allocations are word-aligned and
// round up to the nearest class").
const minClassSize = 16

// maxClasses bounds how many doublings above minClassSize a single arena
// tracks (16B .. 16B<<31), comfortably larger than any realistic region.
const maxClasses = 32

// Arena is a size-classed free-list allocator over the byte ranges donated
// to it by ArenaPut. Per spec §3 it is single-writer per process: each
// agent/worker process owns its own Arena bookkeeping (the free lists and
// bump cursor below are ordinary process-local Go state), while the bytes
// it hands out always live inside a shared Region so other processes can
// dereference relative pointers into them.
type Arena struct {
	region *Region

	// extents are the contiguous byte ranges donated via ArenaPut, each
	// carved from the low (unused) end by bump allocation before falling
	// back further extents are ever added.
	extents []extent

	// classes[i] is a LIFO stack of freed block offsets of size
	// minClassSize<<i, available for immediate reuse.
	classes [maxClasses][]uint64

	ballocBytes uint64
	bfreeBytes  uint64
}

type extent struct {
	start uint64
	end   uint64
	bump  uint64 // next uncarved offset within [start, end)
}

// NewArena constructs an empty arena over region; callers donate byte
// ranges with ArenaPut before allocating.
func NewArena(region *Region) *Arena {
	return &Arena{region: region}
}

// ArenaPut donates the contiguous byte range [offset, offset+length) of the
// arena's region for future allocations. Ranges must not overlap one
// another or already-donated ranges; this is a fresh-region bootstrap
// primitive, not a general-purpose shrink/grow mechanism.
//
// A donated range starting at region offset 0 has its first minClassSize
// bytes withheld from allocation: offset 0 doubles as internal/relptr's
// NULL sentinel, so Balloc must never be able to hand it out as a live
// allocation.
func (a *Arena) ArenaPut(offset, length uint64) error {
	if length == 0 {
		return fmt.Errorf("shm: zero-length arena extent")
	}
	if offset+length > a.region.Size() {
		return fmt.Errorf("shm: arena extent [%d,%d) exceeds region size %d", offset, offset+length, a.region.Size())
	}
	start := offset
	if start == 0 {
		start = minClassSize
		if start >= offset+length {
			return fmt.Errorf("shm: arena extent [%d,%d) too small to withhold the NULL-sentinel offset", offset, offset+length)
		}
	}
	a.extents = append(a.extents, extent{start: start, end: offset + length, bump: start})
	return nil
}

func classIndex(size uint64) (int, uint64) {
	if size < minClassSize {
		size = minClassSize
	}
	classSize := uint64(minClassSize)
	idx := 0
	for classSize < size {
		classSize <<= 1
		idx++
	}
	return idx, classSize
}

// Balloc allocates n bytes, returning a region-relative offset. It never
// spans an arena extent boundary (spec invariant (c)): a class that cannot
// be carved from the extent currently being bumped falls through to trying
// the next extent, and only returns 0,false once the request's own
// size-class free list and every extent are exhausted (OutOfMemory, spec
// §7). Free blocks of other size classes are not used for the request.
func (a *Arena) Balloc(n uint64) (uint64, bool) {
	if n == 0 {
		return 0, false
	}
	idx, classSize := classIndex(n)
	if idx >= maxClasses {
		return 0, false
	}

	if stack := a.classes[idx]; len(stack) > 0 {
		off := stack[len(stack)-1]
		a.classes[idx] = stack[:len(stack)-1]
		a.ballocBytes += classSize
		return off, true
	}

	for i := range a.extents {
		e := &a.extents[i]
		if e.bump+classSize <= e.end {
			off := e.bump
			e.bump += classSize
			a.ballocBytes += classSize
			return off, true
		}
	}
	return 0, false
}

// Bfree returns a previously allocated [offset, offset+n) block (n must be
// the same size originally passed to Balloc) to its size class's free list.
// Double-free is undefined behavior, as in the original: the free path
// trusts the caller's offset and size.
func (a *Arena) Bfree(offset, n uint64) {
	idx, classSize := classIndex(n)
	if idx >= maxClasses {
		return
	}
	a.classes[idx] = append(a.classes[idx], offset)
	a.bfreeBytes += classSize
}

// Outstanding returns balloc_size - bfree_size, the conservation invariant
// checked by spec §8 property 3.
func (a *Arena) Outstanding() uint64 { return a.ballocBytes - a.bfreeBytes }

// Region returns the backing region, e.g. so a memctx can dereference
// relative pointers against it.
func (a *Arena) Region() *Region { return a.region }
