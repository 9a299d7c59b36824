// Package rcu implements the fine-grained RCU quiescence primitive (spec
// §4.2, C4) that individual atomic-pointer swaps use. It coexists with, and
// is deliberately simpler than, the coarse-grained configuration generation
// chain in internal/config (spec §9 "RCU vs. generation chain" design
// note): this package guards a single *T swap; internal/config guards
// whole configuration-tree publications.
package rcu

import (
	"runtime"
	"sync/atomic"
)

const (
	activeBit     = uint32(1)
	localEpochBit = uint32(1) << 1
)

// workerState packs {active: 1 bit, local_epoch: 1 bit} into one word, cache
// line padded so independent workers never false-share.
type workerState struct {
	state atomic.Uint32
	_     [60]byte
}

// RCU is a quiescence primitive for one or more *T fields read by a fixed
// set of workers and swapped by a single writer (the control plane).
type RCU[T any] struct {
	globalEpoch atomic.Uint32
	workers     []workerState
}

// New constructs an RCU primitive with the given worker count.
func New[T any](numWorkers int) *RCU[T] {
	return &RCU[T]{workers: make([]workerState, numWorkers)}
}

// ReadBegin marks worker as active in the current global epoch and returns
// the field's current value with acquire ordering. The caller must call
// ReadEnd before doing anything that could block or run unboundedly long;
// critical sections here are meant to be a handful of instructions.
func (r *RCU[T]) ReadBegin(worker int, field *atomic.Pointer[T]) *T {
	ge := r.globalEpoch.Load() & 1
	r.workers[worker].state.Store(activeBit | (ge << 1))
	return field.Load()
}

// ReadEnd marks worker as no longer active, preserving its last observed
// local epoch bit.
func (r *RCU[T]) ReadEnd(worker int) {
	r.workers[worker].state.Store(r.workers[worker].state.Load() &^ activeBit)
}

// Update publishes newValue into field and blocks until every worker has
// witnessed it, i.e. until it is safe for the caller to reclaim whatever
// the field previously pointed to. It never blocks a worker; it only blocks
// the single writer calling Update.
func (r *RCU[T]) Update(field *atomic.Pointer[T], newValue *T) {
	field.Store(newValue)
	r.flipAndWait()
	r.flipAndWait()
}

// flipAndWait flips the global epoch and spins until every worker is either
// inactive or has observed the new epoch. Two calls (see Update) guarantee
// that a worker caught mid-ReadBegin during the first flip is, by the time
// both flips have completed, either past its critical section or re-entered
// and observed the new value (spec §4.2 "Rationale").
func (r *RCU[T]) flipAndWait() {
	old := r.globalEpoch.Load()
	next := old ^ 1
	r.globalEpoch.Store(next)
	want := next & 1

	for i := range r.workers {
		for {
			s := r.workers[i].state.Load()
			active := s & activeBit
			localEpoch := (s & localEpochBit) >> 1
			if active == 0 || localEpoch == want {
				break
			}
			runtime.Gosched()
		}
	}
}

// NumWorkers returns the worker count this RCU instance was built with.
func (r *RCU[T]) NumWorkers() int { return len(r.workers) }
