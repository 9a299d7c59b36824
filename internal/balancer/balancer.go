// Package balancer implements the stateless-plus-session L4 load
// balancer datapath (spec §3/§4.6, C13): virtual-service lookup, a
// source allowlist, weighted real selection backed by a TTL session
// table, and tunnel encapsulation to the chosen real. It is grounded on
// modules/balancer/dataplane's handler chain (vs.h/real.h/select.h/
// session_table.h/tunnel.h) reworked around internal/xpacket2's
// byte-offset packet representation and internal/ttlmap's bucket map
// instead of DPDK mbufs.
package balancer

import (
	"errors"

	"github.com/sakateka/yanet2-sub001/internal/xpacket2"
)

// Config is one balancer module instance's configuration: the virtual
// service registry, the flat real table every VS indexes into, session
// timeouts, and the session table all VSes share.
type Config struct {
	Services *Registry
	Reals    []Real
	Timeouts Timeouts
	Sessions *SessionTable
}

// ErrNoMatch is returned by Process when no virtual service matches the
// packet's destination.
var ErrNoMatch = errors.New("balancer: no virtual service matches packet")

// Process runs the full datapath (spec §4.6 steps 1-4) for one packet,
// returning the drop reason when it can't be forwarded, or nil after
// Tunnel has rewritten pkt.Data in place for transmission to the chosen
// real.
func Process(cfg *Config, now uint32, pkt *xpacket2.Packet) (*Real, DropReason, error) {
	meta, err := extractMetadata(pkt)
	if err != nil {
		return nil, DropNone, err
	}

	vs := cfg.Services.Lookup(meta.dst, meta.transportProto, meta.dstPort)
	if vs == nil {
		return nil, DropNoVS, nil
	}

	real, reason := SelectReal(cfg.Sessions, cfg.Timeouts, cfg.Reals, vs, now, meta)
	if real == nil {
		return nil, reason, nil
	}

	if err := Tunnel(vs, real, pkt); err != nil {
		return nil, DropNone, err
	}
	return real, DropNone, nil
}
