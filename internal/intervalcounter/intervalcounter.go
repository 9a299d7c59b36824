// Package intervalcounter implements the ring of generation-tagged
// cumulative-delta slots used for active-session counting (spec §3/§4, C5),
// ported from common/interval_counter.h.
package intervalcounter

import (
	"fmt"
	"math/bits"
)

type slot struct {
	value int64
	gen   uint32
}

// Counter tracks, for any instant "now", the number of intervals [from,
// from+timeout) previously registered via Put that still cover now.
type Counter struct {
	rangeSize     uint32
	rangeSizeBits uint32
	values        []slot
	// maxTimeout is kept unconditionally (spec §9 Open Question 3, not
	// gated behind a debug build) so Put can assert a caller never
	// registers a timeout the ring wasn't sized for.
	maxTimeout uint32
	now        uint32
}

// New constructs a Counter sized for timeouts up to maxTimeout, with the
// clock starting at now.
func New(now, maxTimeout uint32) (*Counter, error) {
	if maxTimeout == 0 {
		return nil, fmt.Errorf("intervalcounter: max_timeout must be positive")
	}
	length := 2 * uint64(maxTimeout)
	// floor(log2(length)), matching interval_counter.h's
	// `31 - __builtin_clz(len)`: since length is already 2*maxTimeout, the
	// largest power of two <= length is always >= maxTimeout, so every
	// registered timeout still fits the ring with room to disambiguate
	// generations.
	rangeBits := uint32(bits.Len64(length)) - 1
	rangeSize := uint32(1) << rangeBits

	return &Counter{
		rangeSize:     rangeSize,
		rangeSizeBits: rangeBits,
		values:        make([]slot, rangeSize),
		maxTimeout:    maxTimeout,
		now:           now,
	}, nil
}

// MaxTimeout returns the timeout the ring was sized for.
func (c *Counter) MaxTimeout() uint32 { return c.maxTimeout }

// Now returns the time point the counter's clock last advanced to,
// letting a caller that shares one Counter across several time sources
// (e.g. several workers' local clocks) clamp each advance to be
// monotonic itself.
func (c *Counter) Now() uint32 { return c.now }

// get returns a pointer to the (possibly stale, zeroed-on-read) slot value
// for absolute time point, disambiguating slot reuse via the generation
// counter (point >> rangeSizeBits), per common/interval_counter.h.
func (c *Counter) get(point uint32) *int64 {
	idx := point & (c.rangeSize - 1)
	gen := point >> c.rangeSizeBits
	v := &c.values[idx]
	if v.gen != gen {
		v.value = 0
		v.gen = gen
	}
	return &v.value
}

// AdvanceTime rolls the running sum forward slot-by-slot to "to", which
// must be >= the current time.
func (c *Counter) AdvanceTime(to uint32) {
	if to < c.now {
		panic("intervalcounter: time must not move backwards")
	}
	for c.now < to {
		prev := c.values[c.now&(c.rangeSize-1)].value
		c.now++
		*c.get(c.now) += prev
	}
}

// CurrentCount returns the number of active intervals covering "now".
func (c *Counter) CurrentCount() uint64 {
	v := c.values[c.now&(c.rangeSize-1)].value
	if v < 0 {
		panic("intervalcounter: negative running count")
	}
	return uint64(v)
}

// Put registers a delta of cnt over the half-open interval [from,
// from+timeout), by adding cnt at from and subtracting it at from+timeout.
func (c *Counter) Put(from, timeout uint32, cnt int32) {
	if timeout > c.maxTimeout {
		panic(fmt.Sprintf("intervalcounter: timeout %d exceeds max_timeout %d", timeout, c.maxTimeout))
	}
	*c.get(from) += int64(cnt)
	*c.get(from + timeout) -= int64(cnt)
}
