package shm

import "unsafe"

// uintptrOf returns the address of a slice's backing array. It is only ever
// used to compute a process-local base address for relative-pointer
// arithmetic (internal/relptr); the resulting uintptr is never stored,
// satisfying the usual "don't stash uintptrs across GC points" caveat.
func uintptrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
