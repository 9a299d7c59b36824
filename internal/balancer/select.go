package balancer

import "github.com/sakateka/yanet2-sub001/internal/ttlmap"

// DropReason names why select.go chose to drop a packet rather than
// produce a real (spec §4.6, §7 "LookupMiss"/"OverflowTransient").
type DropReason int

const (
	DropNone DropReason = iota
	DropNoVS
	DropSrcNotAllowed
	DropNoReal
	DropSessionOverflow
	DropSessionIneligible
)

// SelectReal runs spec §4.6 steps 1-3: VS lookup is assumed done by the
// caller (it needs the parsed 5-tuple, which the caller already has);
// this function implements the source allowlist, OPS/regular real
// selection, and session table bookkeeping.
func SelectReal(st *SessionTable, timeouts Timeouts, reals []Real, vs *VS, now uint32, meta packetMetadata) (*Real, DropReason) {
	if !vs.AllowsSource(meta.src) {
		return nil, DropSrcNotAllowed
	}

	if vs.Flags&VSOPS != 0 {
		realIdx := vs.RealRing.Get(vs.NextRnd(meta.hash))
		if realIdx == RingInvalid {
			return nil, DropNoReal
		}
		return &reals[vs.RealStart+int(realIdx)], DropNone
	}

	timeout := sessionTimeout(timeouts, meta)
	id := fillSessionID(meta, vs.Flags&VSPureL3 != 0)

	status, val, lock := st.GetOrCreate(now, timeout, id)
	switch status {
	case ttlmap.Failed:
		return nil, DropSessionOverflow
	case ttlmap.Found:
		real := &reals[val.RealID]
		val.Timeout = timeout
		val.LastPacketTs = now
		lock.Release()
		if !real.enabled() {
			return nil, DropNoReal
		}
		return real, DropNone
	default: // Inserted or Replaced: a brand new session slot
		if !rescheduleReal(meta) {
			lock.Release()
			st.Remove(id)
			return nil, DropSessionIneligible
		}
		realIdx := vs.RealRing.Get(vs.NextRnd(meta.hash))
		if realIdx == RingInvalid {
			lock.Release()
			st.Remove(id)
			return nil, DropNoReal
		}
		realID := uint32(vs.RealStart) + realIdx
		val.CreateTimestamp = now
		val.LastPacketTs = now
		val.RealID = realID
		val.Timeout = timeout
		lock.Release()
		return &reals[realID], DropNone
	}
}
