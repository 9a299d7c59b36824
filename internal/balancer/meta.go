package balancer

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/sakateka/yanet2-sub001/internal/xpacket2"
)

// packetMetadata is the balancer's view of a packet (spec §3 "packet
// metadata", grounded on dataplane/meta.h's packet_metadata): addresses,
// ports, TCP flags and the flow hash computed once at parse time.
type packetMetadata struct {
	networkProto   uint8
	transportProto uint8
	src, dst       netip.Addr
	srcPort        uint16
	dstPort        uint16
	tcpFlags       uint8
	hash           uint32
}

// extractMetadata reads addresses and transport header fields directly
// out of pkt.Data at the offsets xpacket2.Parse recorded.
func extractMetadata(pkt *xpacket2.Packet) (packetMetadata, error) {
	var meta packetMetadata
	meta.hash = pkt.Hash

	switch pkt.NetworkProto {
	case xpacket2.NetworkIPv4:
		meta.networkProto = protoIPv4
		hdr := pkt.Data[pkt.NetworkStart:]
		if len(hdr) < 20 {
			return meta, fmt.Errorf("balancer: truncated ipv4 header")
		}
		var src, dst [4]byte
		copy(src[:], hdr[12:16])
		copy(dst[:], hdr[16:20])
		meta.src = netip.AddrFrom4(src)
		meta.dst = netip.AddrFrom4(dst)
	case xpacket2.NetworkIPv6:
		meta.networkProto = protoIPv6
		hdr := pkt.Data[pkt.NetworkStart:]
		if len(hdr) < 40 {
			return meta, fmt.Errorf("balancer: truncated ipv6 header")
		}
		var src, dst [16]byte
		copy(src[:], hdr[8:24])
		copy(dst[:], hdr[24:40])
		meta.src = netip.AddrFrom16(src)
		meta.dst = netip.AddrFrom16(dst)
	default:
		return meta, fmt.Errorf("balancer: unsupported network protocol")
	}

	transport := pkt.Data[pkt.TransportStart:]
	switch pkt.TransportProto {
	case xpacket2.TransportTCP:
		if len(transport) < 20 {
			return meta, fmt.Errorf("balancer: truncated tcp header")
		}
		meta.transportProto = protoTCP
		meta.srcPort = binary.BigEndian.Uint16(transport[0:2])
		meta.dstPort = binary.BigEndian.Uint16(transport[2:4])
		meta.tcpFlags = transport[13]
	case xpacket2.TransportUDP:
		if len(transport) < 8 {
			return meta, fmt.Errorf("balancer: truncated udp header")
		}
		meta.transportProto = protoUDP
		meta.srcPort = binary.BigEndian.Uint16(transport[0:2])
		meta.dstPort = binary.BigEndian.Uint16(transport[2:4])
	default:
		return meta, fmt.Errorf("balancer: unsupported transport protocol")
	}

	return meta, nil
}

// Network protocol numbers (the IANA IP protocol numbers for IPv4 and
// IPv6, matching the constants select.h compares against).
const (
	protoIPv4 = 4
	protoIPv6 = 41
)
