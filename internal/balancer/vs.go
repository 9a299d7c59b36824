package balancer

import (
	"fmt"
	"net/netip"
	"sync/atomic"

	"github.com/sakateka/yanet2-sub001/internal/lpm"
)

// VS flags (spec §3 "Virtual service", grounded on modules/balancer's
// api/vs.h flag bits).
const (
	VSIPv6 uint64 = 1 << iota
	VSPureL3
	VSFixMSS
	VSGRE
	VSOPS // one-packet scheduling: bypass the session table entirely
	VSPRR // pure round-robin real selection instead of flow-hash based
)

// Real flags.
const (
	RealIPv6 uint8 = 1 << iota
	RealDisabled
)

// VS is a virtual service: address/port/proto plus its reals and source
// allowlist (spec §3 "Virtual service").
type VS struct {
	ID    uint32
	Flags uint64

	Address netip.Addr
	Port    uint16
	Proto   uint8 // protoTCP / protoUDP

	RealStart int
	RealCount int

	SrcFilter *lpm.LPM // 4 or 16-byte keys depending on VSIPv6; nil allows all
	RealRing  *Ring

	// roundRobin backs the PRR flag's monotonic counter. Readable/
	// writable by many workers concurrently, hence atomic rather than a
	// plain uint32.
	roundRobin atomic.Uint64
}

// NextRnd returns the value select_real() should feed to the real ring:
// a monotonic counter under VSPRR, otherwise the packet's flow hash.
func (vs *VS) NextRnd(flowHash uint32) uint64 {
	if vs.Flags&VSPRR != 0 {
		return vs.roundRobin.Add(1) - 1
	}
	return uint64(flowHash)
}

// AllowsSource reports whether src passes the VS's source allowlist. A
// nil filter allows everything (spec S1: "src allowlist 0.0.0.0-255...").
func (vs *VS) AllowsSource(src netip.Addr) bool {
	if vs.SrcFilter == nil {
		return true
	}
	var key []byte
	if src.Is4() {
		b := src.As4()
		key = b[:]
	} else {
		b := src.As16()
		key = b[:]
	}
	return vs.SrcFilter.Lookup(key) != lpm.Invalid
}

// Real is one backend server a VS can forward to (spec §3 "Real").
type Real struct {
	RegistryIdx uint32
	Flags       uint8
	Weight      uint16
	Dst         netip.Addr
	Src         netip.Addr
	SrcMask     netip.Addr
}

func (r *Real) enabled() bool { return r.Flags&RealDisabled == 0 }

// VSKey identifies a virtual service by the fields its lookup is keyed
// on (spec §4.6 step 1: "(net, port, proto)"; a pure-L3 VS is keyed with
// port 0 and matches any packet port).
type VSKey struct {
	Address netip.Addr
	Proto   uint8
	Port    uint16
}

// Registry resolves an incoming packet's (net, dst port, proto) to the
// virtual service it should be load-balanced through.
type Registry struct {
	byKey map[VSKey]*VS
}

// NewRegistry builds a VS registry from a flat list, keying pure-L3
// services (VSPureL3) on port 0.
func NewRegistry(services []*VS) (*Registry, error) {
	r := &Registry{byKey: make(map[VSKey]*VS, len(services))}
	for _, vs := range services {
		key := VSKey{Address: vs.Address, Proto: vs.Proto, Port: vs.Port}
		if vs.Flags&VSPureL3 != 0 {
			key.Port = 0
		}
		if _, exists := r.byKey[key]; exists {
			return nil, fmt.Errorf("balancer: duplicate virtual service for %+v", key)
		}
		r.byKey[key] = vs
	}
	return r, nil
}

// Lookup resolves a VS for the given destination address/proto/port,
// falling back to the pure-L3 (port 0) entry.
func (r *Registry) Lookup(addr netip.Addr, proto uint8, port uint16) *VS {
	if vs, ok := r.byKey[VSKey{Address: addr, Proto: proto, Port: port}]; ok {
		return vs
	}
	if vs, ok := r.byKey[VSKey{Address: addr, Proto: proto, Port: 0}]; ok {
		return vs
	}
	return nil
}
