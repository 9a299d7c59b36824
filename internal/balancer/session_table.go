package balancer

import (
	"sync"
	"sync/atomic"

	"github.com/sakateka/yanet2-sub001/internal/intervalcounter"
	"github.com/sakateka/yanet2-sub001/internal/ttlmap"
)

// SessionTable is the balancer's TTL hash map of live flows, with the
// double-generation resize scheme from spec §3 "Resize" / session_table.h:
// a resize allocates a second, double-capacity map; new sessions go to
// it, but lookups still consult the old ("prev") map for at most one TTL
// window, until every worker has advanced its clock past the deadline
// that map could still be legitimately referenced under.
type SessionTable struct {
	mu sync.Mutex

	entriesPerBucket int
	hash             func(SessionID) uint64
	maxTimeout       uint32 // Open Question 3: kept unconditionally, not debug-only

	// gen is even while stable (single map in cur) and odd while a
	// resize is in flight (session_table.h's worker_use_prev_map: "table
	// gen & 1").
	gen  atomic.Uint64
	cur  atomic.Pointer[ttlmap.Map[SessionID, SessionState]]
	prev atomic.Pointer[ttlmap.Map[SessionID, SessionState]]

	maxDeadlinePrevGen atomic.Uint32
	workerNow          []atomic.Uint32

	// activeMu guards active, the C5 interval counter tracking how many
	// sessions created so far are still within their TTL window. It is
	// separate from mu (which only ever guards a resize) since recording
	// a new session is on the hot GetOrCreate path and must not contend
	// with a resize in progress on another worker.
	activeMu sync.Mutex
	active   *intervalcounter.Counter
}

// NewSessionTable constructs a session table with the given initial
// capacity, ready for numWorkers concurrent workers.
func NewSessionTable(capacity, entriesPerBucket int, maxTimeout uint32, hash func(SessionID) uint64, numWorkers int) (*SessionTable, error) {
	m, err := ttlmap.New(capacity, entriesPerBucket, hash)
	if err != nil {
		return nil, err
	}
	active, err := intervalcounter.New(0, maxTimeout)
	if err != nil {
		return nil, err
	}
	st := &SessionTable{
		entriesPerBucket: entriesPerBucket,
		hash:             hash,
		maxTimeout:       maxTimeout,
		workerNow:        make([]atomic.Uint32, numWorkers),
		active:           active,
	}
	st.cur.Store(m)
	return st, nil
}

// ObserveNow records worker's current clock reading; ReclaimIfDrained
// uses this to decide when the prev-generation map is safe to drop.
func (st *SessionTable) ObserveNow(worker int, now uint32) {
	st.workerNow[worker].Store(now)
}

// GetOrCreate is the TTL-map lookup/insert step of spec §4.6 step 3,
// folding in the during-resize prev-map consultation from
// get_or_create_session (session_table.h).
func (st *SessionTable) GetOrCreate(now, timeout uint32, id SessionID) (ttlmap.Status, *SessionState, *ttlmap.Lock[SessionID, SessionState]) {
	gen := st.gen.Load()
	cur := st.cur.Load()

	status, val, lock := cur.Get(id, now, timeout)
	switch status {
	case ttlmap.Found:
		return ttlmap.Found, val, lock
	case ttlmap.Failed:
		return ttlmap.Failed, nil, nil
	}

	// Inserted or Replaced: if a resize is in flight, this flow might
	// already have a home in the previous generation's map; if so,
	// adopt its state into the freshly claimed slot so both generations
	// agree on which real the flow is pinned to.
	if gen&1 == 1 {
		if prev := st.prev.Load(); prev != nil {
			if pstatus, pval := prev.Lookup(id); pstatus == ttlmap.Found {
				*val = pval
				st.maybeResize(cur, now)
				return ttlmap.Found, val, lock
			}
		}
	}

	st.recordActive(now, timeout)
	st.maybeResize(cur, now)
	return status, val, lock
}

// recordActive registers a newly claimed session with the active-session
// counter (spec C5), advancing the counter's clock to now first if a
// worker with a newer "now" hasn't already done so. A worker observing a
// stale now (another worker already advanced the clock further) just
// records the delta without rewinding the clock back.
func (st *SessionTable) recordActive(now, timeout uint32) {
	st.activeMu.Lock()
	defer st.activeMu.Unlock()
	if now > st.active.Now() {
		st.active.AdvanceTime(now)
	}
	st.active.Put(now, timeout, 1)
}

// AdvanceActiveClock rolls the active-session counter's clock forward to
// now without registering a new session, letting a worker keep the
// counter's expiries current even during a stretch with no new sessions.
func (st *SessionTable) AdvanceActiveClock(now uint32) {
	st.activeMu.Lock()
	defer st.activeMu.Unlock()
	if now > st.active.Now() {
		st.active.AdvanceTime(now)
	}
}

// ActiveSessionCount returns the number of sessions registered via
// GetOrCreate whose TTL window still covers the counter's current clock
// reading.
func (st *SessionTable) ActiveSessionCount() uint64 {
	st.activeMu.Lock()
	defer st.activeMu.Unlock()
	return st.active.CurrentCount()
}

// maybeResize samples the density signal (Open Question 5: occupancy
// ratio ≥ 7/8) and, if no resize is already in flight, doubles capacity.
func (st *SessionTable) maybeResize(cur *ttlmap.Map[SessionID, SessionState], now uint32) {
	if cur.OccupiedEntries()*8 < cur.Capacity()*7 {
		return
	}
	st.ForceResize(cur, now)
}

// ForceResize resizes unconditionally (spec §3 "force=true resizes
// unconditionally"), skipping the call if a resize is already pending
// for a different current map (a concurrent caller already started one).
func (st *SessionTable) ForceResize(cur *ttlmap.Map[SessionID, SessionState], now uint32) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.gen.Load()&1 == 1 || st.cur.Load() != cur {
		return
	}
	next, err := ttlmap.New(cur.Capacity()*2, st.entriesPerBucket, st.hash)
	if err != nil {
		return
	}
	st.prev.Store(cur)
	st.cur.Store(next)
	st.maxDeadlinePrevGen.Store(now + st.maxTimeout)
	st.gen.Add(1)
}

// ReclaimIfDrained frees the previous generation's map once every
// worker's clock has passed the deadline any of its entries could still
// be legitimately read under. Returns true if it reclaimed.
func (st *SessionTable) ReclaimIfDrained() bool {
	if st.gen.Load()&1 == 0 {
		return false
	}
	deadline := st.maxDeadlinePrevGen.Load()
	for i := range st.workerNow {
		if st.workerNow[i].Load() <= deadline {
			return false
		}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.gen.Load()&1 == 0 {
		return false
	}
	st.prev.Store(nil)
	st.gen.Add(1)
	return true
}

// Lookup performs a read-only lookup (spec §4.6 "get_session_real"),
// consulting the previous generation's map when a resize is in flight
// and the current map has no entry.
func (st *SessionTable) Lookup(now uint32, id SessionID) (ttlmap.Status, SessionState) {
	gen := st.gen.Load()
	cur := st.cur.Load()
	status, val := cur.Lookup(id)
	if status == ttlmap.Found {
		return status, val
	}
	if gen&1 == 1 {
		if prev := st.prev.Load(); prev != nil {
			return prev.Lookup(id)
		}
	}
	return ttlmap.Failed, SessionState{}
}

// Remove invalidates a session (used when a newly created session turns
// out to be ineligible, e.g. a non-SYN TCP packet — spec §4.6 step 3).
func (st *SessionTable) Remove(id SessionID) bool {
	return st.cur.Load().Remove(id)
}
