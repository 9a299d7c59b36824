// Package memctx implements the named memory context (spec §3/§4.1, C2): a
// thin, accounted wrapper over an internal/shm.Arena that modules use so
// leaks can be attributed to the module/agent that caused them.
package memctx

import (
	"fmt"
	"unsafe"

	"github.com/sakateka/yanet2-sub001/internal/relptr"
	"github.com/sakateka/yanet2-sub001/internal/shm"
)

// Context is a named balloc/bfree facade over a shared Arena.
type Context struct {
	name      string
	arena     *shm.Arena
	allocated uint64
	freed     uint64
}

// New constructs a context named name over arena. Contexts are cheap;
// modules are expected to carry their own (spec §3).
func New(arena *shm.Arena, name string) *Context {
	return &Context{name: name, arena: arena}
}

// Name returns the context's attribution label.
func (c *Context) Name() string { return c.name }

// Region returns the region backing this context's arena, for dereferencing
// the offsets Balloc returns.
func (c *Context) Region() *shm.Region { return c.arena.Region() }

// Balloc allocates n bytes, returning a region-relative offset, or
// (0, false) on OutOfMemory (spec §7: callers propagate, never retry).
func (c *Context) Balloc(n uint64) (uint64, bool) {
	off, ok := c.arena.Balloc(n)
	if ok {
		c.allocated += n
	}
	return off, ok
}

// Bfree returns a block to the arena and records it against this context.
func (c *Context) Bfree(offset, n uint64) {
	c.arena.Bfree(offset, n)
	c.freed += n
}

// Outstanding is balloc_size - bfree_size for this context: zero after a
// correct teardown (spec §8 property 3).
func (c *Context) Outstanding() uint64 { return c.allocated - c.freed }

// Allocated returns the cumulative allocated byte count.
func (c *Context) Allocated() uint64 { return c.allocated }

// Freed returns the cumulative freed byte count.
func (c *Context) Freed() uint64 { return c.freed }

// Alloc allocates space for one T inside the context's region and returns
// both a live pointer (valid in this process) and the relative pointer
// other processes can use to reach the same bytes.
func Alloc[T any](c *Context) (*T, relptr.Ptr[T], error) {
	var zero T
	size := uint64(unsafe.Sizeof(zero))
	off, ok := c.Balloc(size)
	if !ok {
		return nil, relptr.Ptr[T]{}, fmt.Errorf("memctx %q: out of memory allocating %d bytes", c.name, size)
	}
	region := c.Region()
	ptr := (*T)(unsafe.Pointer(&region.Bytes()[off])) //nolint:govet
	*ptr = zero
	return ptr, relptr.FromOffset[T](off), nil
}

// Free releases the storage for a value previously returned by Alloc.
func Free[T any](c *Context, offset uint64) {
	var zero T
	c.Bfree(offset, uint64(unsafe.Sizeof(zero)))
}
