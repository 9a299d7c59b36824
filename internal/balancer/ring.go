package balancer

// RingInvalid is returned by Ring.Get when the ring has no entries
// (spec §3 "Real selection ring", grounded on dataplane/ring.h's
// RING_VALUE_INVALID).
const RingInvalid uint32 = 0xffffffff

// Ring is a weighted real-selection array: real i appears weight_i
// times, so a uniformly distributed index lands on real i with
// probability proportional to its weight. Disabled reals contribute
// zero entries.
type Ring struct {
	ids []uint32
}

// NewRing builds the weighted selection array for reals[realStart:realStart+realCount].
// Each enabled real's index relative to realStart is repeated real.Weight
// times; a disabled real contributes no entries.
func NewRing(reals []Real, realStart, realCount int) *Ring {
	var total int
	for i := 0; i < realCount; i++ {
		r := &reals[realStart+i]
		if r.enabled() {
			total += int(r.Weight)
		}
	}
	ids := make([]uint32, 0, total)
	for i := 0; i < realCount; i++ {
		r := &reals[realStart+i]
		if !r.enabled() {
			continue
		}
		for w := uint16(0); w < r.Weight; w++ {
			ids = append(ids, uint32(i))
		}
	}
	return &Ring{ids: ids}
}

// Get selects a real's index (relative to the VS's real_start) using
// rnd; the caller changes rnd on every call to keep the distribution
// uniform (flow hash or a round-robin counter).
func (r *Ring) Get(rnd uint64) uint32 {
	if len(r.ids) == 0 {
		return RingInvalid
	}
	return r.ids[rnd%uint64(len(r.ids))]
}

// Len reports the number of weighted slots in the ring.
func (r *Ring) Len() int { return len(r.ids) }
