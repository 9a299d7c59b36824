// Package shm is the shared-memory substrate (spec §4.1, C1): a single
// contiguous mapping that every attaching process (workers and the control
// plane agent) addresses through region-relative offsets (internal/relptr)
// rather than absolute pointers, and a size-classed block allocator
// (Arena) that carves that mapping into allocations.
package shm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Region is a contiguous byte mapping shared across processes. In
// production it is backed by a real anonymous MAP_SHARED mapping so that a
// forked/exec'd control-plane agent and the dataplane worker process
// observe the same bytes; NewAnonRegion is what production callers use.
// Tests that only need in-process sharing can use NewHeapRegion instead,
// which skips the syscall but preserves the same addressing discipline.
type Region struct {
	data   []byte
	mapped bool
}

// NewAnonRegion mmaps an anonymous MAP_SHARED|MAP_ANONYMOUS region of the
// given size. The mapping is suitable for sharing with a forked child (the
// dataplane worker process and the control-plane agent process both
// descend from the instance that created it) and can be resized only by
// creating a new, larger region and migrating live state (internal/config
// generation swap does this for whole configuration trees; it is never
// done for the region itself while workers are running).
func NewAnonRegion(size uint64) (*Region, error) {
	if size == 0 {
		return nil, fmt.Errorf("shm: region size must be positive")
	}
	data, err := unix.Mmap(
		-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED|unix.MAP_ANONYMOUS,
	)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap %d bytes: %w", size, err)
	}
	if err := unix.Madvise(data, unix.MADV_WILLNEED); err != nil {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("shm: madvise: %w", err)
	}
	return &Region{data: data, mapped: true}, nil
}

// NewHeapRegion allocates a region backed by ordinary Go heap memory. It
// satisfies the same Base/addressing contract as NewAnonRegion, but the
// bytes are private to this process; it exists for unit tests that exercise
// the allocator, relative pointers, and the generation swap without paying
// for a real mapping or needing a second process to observe it.
func NewHeapRegion(size uint64) (*Region, error) {
	if size == 0 {
		return nil, fmt.Errorf("shm: region size must be positive")
	}
	return &Region{data: make([]byte, size)}, nil
}

// Close releases the mapping. Safe to call on a heap-backed region (no-op
// beyond dropping the slice).
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	defer func() { r.data = nil }()
	if r.mapped {
		return unix.Munmap(r.data)
	}
	return nil
}

// BaseAddr implements relptr.Base.
func (r *Region) BaseAddr() uintptr {
	return uintptrOf(r.data)
}

// Size returns the region's total byte length.
func (r *Region) Size() uint64 { return uint64(len(r.data)) }

// Bytes returns the backing slice. Callers use it to seed arena extents and
// to bounds-check offsets; it is not itself relative-pointer-safe to store.
func (r *Region) Bytes() []byte { return r.data }
