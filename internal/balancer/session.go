package balancer

import "net/netip"

// Transport/network protocol numbers the balancer reasons about
// directly (IANA assigned numbers, matching the NAT64 port's constants).
const (
	protoICMP = 1
	protoTCP  = 6
	protoUDP  = 17
)

// TCP flag bits the session/timeout logic inspects.
const (
	tcpFlagFIN = 1 << 0
	tcpFlagSYN = 1 << 1
	tcpFlagRST = 1 << 2
	tcpFlagACK = 1 << 4
)

// SessionID is the TTL-map key identifying one balanced flow (spec §3
// "Session"). A pure-L3 VS zeroes both ports before filling this in.
type SessionID struct {
	TransportProto uint8
	NetworkProto   uint8
	Src            netip.Addr
	Dst            netip.Addr
	SrcPort        uint16
	DstPort        uint16
}

// SessionState is the TTL-map value: which real a flow was pinned to,
// and the bookkeeping needed to expire it (spec §3 "Session").
type SessionState struct {
	RealID          uint32
	CreateTimestamp uint32
	LastPacketTs    uint32
	Timeout         uint32
}

// Timeouts configures per-state session lifetimes (spec §3 "Session":
// "Timeouts are configured per TCP state ... UDP, and default").
type Timeouts struct {
	TCPSynAck uint32
	TCPSyn    uint32
	TCPFin    uint32
	TCP       uint32
	UDP       uint32
	Default   uint32
}

// sessionTimeout picks the timeout bucket for a packet (spec §4.6
// "Timeout selection for TCP").
func sessionTimeout(t Timeouts, meta packetMetadata) uint32 {
	switch meta.transportProto {
	case protoUDP:
		return t.UDP
	case protoTCP:
		if meta.tcpFlags&tcpFlagSYN != 0 {
			if meta.tcpFlags&tcpFlagACK != 0 {
				return t.TCPSynAck
			}
			return t.TCPSyn
		}
		if meta.tcpFlags&tcpFlagFIN != 0 {
			return t.TCPFin
		}
		return t.TCP
	default:
		return t.Default
	}
}

// rescheduleReal reports whether a packet is allowed to pin a new real
// to a freshly created session (spec §4.6 "Reschedule eligibility": UDP
// always, TCP iff SYN without RST).
func rescheduleReal(meta packetMetadata) bool {
	if meta.transportProto == protoUDP {
		return true
	}
	if meta.transportProto != protoTCP {
		return false
	}
	return meta.tcpFlags&(tcpFlagSYN|tcpFlagRST) == tcpFlagSYN
}

// fillSessionID derives a SessionID from packet metadata, zeroing ports
// for pure-L3 virtual services.
func fillSessionID(meta packetMetadata, pureL3 bool) SessionID {
	id := SessionID{
		TransportProto: meta.transportProto,
		NetworkProto:   meta.networkProto,
		Src:            meta.src,
		Dst:            meta.dst,
	}
	if !pureL3 {
		id.SrcPort = meta.srcPort
		id.DstPort = meta.dstPort
	}
	return id
}
