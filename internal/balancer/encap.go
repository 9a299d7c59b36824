package balancer

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/sakateka/yanet2-sub001/internal/xpacket2"
)

// Encapsulation next-header/protocol numbers (dataplane/tunnel.h).
const (
	protoIPIP = 4  // IPv4 inner packet (IPv4-in-IPv4 or IPv4-in-IPv6)
	protoGRE  = 47
)

// Tunnel builds the encapsulated packet to send to real (spec §4.6 step
// 4), mutating pkt in place: an MSS clamp on the inner TCP SYN if
// requested, then prepending an outer IPv4 or IPv6 header (matching
// real's family) and, if VSGRE is set, a 4-byte GRE header between the
// outer and inner headers.
func Tunnel(vs *VS, real *Real, pkt *xpacket2.Packet) error {
	if vs.Flags&VSFixMSS != 0 && pkt.NetworkProto == xpacket2.NetworkIPv6 {
		fixMSSIPv6(pkt)
	}

	innerSrc, err := innerSourceAddr(pkt)
	if err != nil {
		return err
	}
	outerSrc := maskedOuterSrc(real, innerSrc)

	innerEthertype := uint16(0x0800)
	if pkt.NetworkProto == xpacket2.NetworkIPv6 {
		innerEthertype = 0x86dd
	}

	l2 := pkt.Data[:pkt.NetworkStart]
	inner := pkt.Data[pkt.NetworkStart:]

	var outer []byte
	var outerNextHeader uint8
	if real.Flags&RealIPv6 != 0 {
		outerNextHeader = protoFor(pkt.NetworkProto)
		outer = buildIPv6Outer(outerSrc, real.Dst, outerNextHeader, len(inner))
	} else {
		outerNextHeader = protoFor(pkt.NetworkProto)
		outer = buildIPv4Outer(outerSrc, real.Dst, outerNextHeader, len(inner))
	}

	if vs.Flags&VSGRE != 0 {
		gre := make([]byte, 4)
		binary.BigEndian.PutUint16(gre[2:4], innerEthertype)
		outer = growOuterForGRE(outer, real.Flags&RealIPv6 != 0, len(gre))
		outer = append(outer, gre...)
	}

	out := make([]byte, 0, len(l2)+len(outer)+len(inner))
	out = append(out, l2...)
	out = append(out, outer...)
	out = append(out, inner...)

	pkt.Data = out
	if real.Flags&RealIPv6 != 0 {
		pkt.NetworkProto = xpacket2.NetworkIPv6
	} else {
		pkt.NetworkProto = xpacket2.NetworkIPv4
	}
	// TransportStart now points at the encapsulated inner packet's own
	// network header, not a transport header; tunneling is the last
	// thing the pipeline does to a packet before it reaches Output, so
	// nothing downstream re-reads it.
	pkt.TransportStart = len(l2) + len(outer)
	return nil
}

// protoFor returns the protocol/next-header number an outer header must
// carry to name the (still IP) payload that follows it.
func protoFor(inner xpacket2.NetworkProto) uint8 {
	if inner == xpacket2.NetworkIPv6 {
		return 41 // IPv6-in-IP
	}
	return protoIPIP
}

func innerSourceAddr(pkt *xpacket2.Packet) (netip.Addr, error) {
	hdr := pkt.Data[pkt.NetworkStart:]
	switch pkt.NetworkProto {
	case xpacket2.NetworkIPv4:
		if len(hdr) < 20 {
			return netip.Addr{}, fmt.Errorf("balancer: truncated ipv4 header")
		}
		var b [4]byte
		copy(b[:], hdr[12:16])
		return netip.AddrFrom4(b), nil
	case xpacket2.NetworkIPv6:
		if len(hdr) < 40 {
			return netip.Addr{}, fmt.Errorf("balancer: truncated ipv6 header")
		}
		var b [16]byte
		copy(b[:], hdr[8:24])
		return netip.AddrFrom16(b), nil
	default:
		return netip.Addr{}, fmt.Errorf("balancer: unsupported inner network protocol")
	}
}

// maskedOuterSrc composes the tunnel's outer source address (spec §4.6
// step 4: "(real.src & real.src_mask) | (client.src & ~real.src_mask)"),
// byte by byte: for both a v6 and a v4 real, each byte keeps the real's
// configured source bits under the mask and takes the client's bits
// outside it. For a v6 real only the leading bytes the client address
// covers (4 for a v4 client, 16 for a v6 client) are combined.
func maskedOuterSrc(real *Real, innerSrc netip.Addr) netip.Addr {
	if real.Flags&RealIPv6 != 0 {
		addr := real.Src.As16()
		mask := real.SrcMask.As16()
		var user []byte
		if innerSrc.Is4() {
			b := innerSrc.As4()
			user = b[:]
		} else {
			b := innerSrc.As16()
			user = b[:]
		}
		for i := range user {
			addr[i] = (addr[i] & mask[i]) | (user[i] &^ mask[i])
		}
		return netip.AddrFrom16(addr)
	}

	addr := real.Src.As4()
	mask := real.SrcMask.As4()
	var user [4]byte
	if innerSrc.Is4() {
		user = innerSrc.As4()
	} else {
		b := innerSrc.As16()
		copy(user[:], b[:4])
	}
	for i := 0; i < 4; i++ {
		addr[i] = (addr[i] & mask[i]) | (user[i] &^ mask[i])
	}
	return netip.AddrFrom4(addr)
}

func buildIPv4Outer(src, dst netip.Addr, proto uint8, payloadLen int) []byte {
	out := make([]byte, 20)
	out[0] = 0x45
	binary.BigEndian.PutUint16(out[2:4], uint16(20+payloadLen))
	out[6] = 0x40 // DF
	out[8] = 64   // TTL
	out[9] = proto
	s := src.As4()
	d := dst.As4()
	copy(out[12:16], s[:])
	copy(out[16:20], d[:])
	sum := ipv4HeaderChecksum(out)
	binary.BigEndian.PutUint16(out[10:12], sum)
	return out
}

func buildIPv6Outer(src, dst netip.Addr, nextHeader uint8, payloadLen int) []byte {
	out := make([]byte, 40)
	out[0] = 0x60
	binary.BigEndian.PutUint16(out[4:6], uint16(payloadLen))
	out[6] = nextHeader
	out[7] = 64 // hop limit
	s := src.As16()
	d := dst.As16()
	copy(out[8:24], s[:])
	copy(out[24:40], d[:])
	return out
}

// growOuterForGRE rewrites the outer header's length/next-header fields
// to account for the GRE header inserted between it and the inner
// packet (tunnel_packet's "adjust outer L3 length and checksum").
func growOuterForGRE(outer []byte, isV6 bool, greLen int) []byte {
	if isV6 {
		payloadLen := binary.BigEndian.Uint16(outer[4:6])
		binary.BigEndian.PutUint16(outer[4:6], payloadLen+uint16(greLen))
		outer[6] = protoGRE
		return outer
	}
	totalLen := binary.BigEndian.Uint16(outer[2:4])
	binary.BigEndian.PutUint16(outer[2:4], totalLen+uint16(greLen))
	outer[9] = protoGRE
	binary.BigEndian.PutUint16(outer[10:12], 0)
	sum := ipv4HeaderChecksum(outer)
	binary.BigEndian.PutUint16(outer[10:12], sum)
	return outer
}

// fixMSSIPv6 clamps or inserts the inner TCP SYN's MSS option (spec §4.6
// step 4 "If VS requests MSS clamping and inner is IPv6/TCP-SYN...",
// grounded on dataplane/mss.h's fix_mss_ipv6). Only SYN-without-RST
// packets are touched; anything else is left alone.
func fixMSSIPv6(pkt *xpacket2.Packet) {
	const (
		optEOL    = 0
		optNOP    = 1
		optMSS    = 2
		optMSSLen = 4
		defaultMSS = 536
		fixMSS     = 1220
	)

	if pkt.TransportProto != xpacket2.TransportTCP {
		return
	}
	tcp := pkt.Data[pkt.TransportStart:]
	if len(tcp) < 20 {
		return
	}
	flags := tcp[13]
	if flags&(tcpFlagSYN|tcpFlagRST) != tcpFlagSYN {
		return
	}
	dataOffset := int(tcp[12]>>4) * 4
	if dataOffset < 20 || pkt.TransportStart+dataOffset > len(pkt.Data) {
		return
	}

	offset := 20
	for offset+optMSSLen <= dataOffset {
		kind := tcp[offset]
		switch kind {
		case optMSS:
			oldMSS := binary.BigEndian.Uint16(tcp[offset+2 : offset+4])
			if oldMSS <= fixMSS {
				return
			}
			cksum := binary.BigEndian.Uint16(tcp[16:18])
			newCksum := csumAdjust(cksum, oldMSS, fixMSS)
			binary.BigEndian.PutUint16(tcp[offset+2:offset+4], fixMSS)
			binary.BigEndian.PutUint16(tcp[16:18], newCksum)
			return
		case optEOL, optNOP:
			offset++
		default:
			l := int(tcp[offset+1])
			if l == 0 {
				return
			}
			offset += l
		}
	}

	// No MSS option present: insert one right after the fixed header,
	// if there's room within the 60-byte max TCP header.
	if dataOffset > 60-optMSSLen {
		return
	}
	insertAt := pkt.TransportStart + 20
	option := make([]byte, optMSSLen)
	option[0] = optMSS
	option[1] = optMSSLen
	binary.BigEndian.PutUint16(option[2:4], defaultMSS)

	grown := make([]byte, 0, len(pkt.Data)+optMSSLen)
	grown = append(grown, pkt.Data[:insertAt]...)
	grown = append(grown, option...)
	grown = append(grown, pkt.Data[insertAt:]...)
	pkt.Data = grown

	tcp = pkt.Data[pkt.TransportStart:]
	tcp[12] += 1 << 4 // data_off += 1 four-byte word

	if pkt.NetworkProto == xpacket2.NetworkIPv6 {
		ipv6 := pkt.Data[pkt.NetworkStart : pkt.NetworkStart+40]
		payloadLen := binary.BigEndian.Uint16(ipv6[4:6])
		binary.BigEndian.PutUint16(ipv6[4:6], payloadLen+optMSSLen)
	}

	// Recompute the TCP checksum in full: the data_off/option insertion
	// touches enough of the segment that an incremental update is more
	// fragile than just resumming over the (small) header+options.
	recomputeTCPChecksumV6(pkt)
}

func recomputeTCPChecksumV6(pkt *xpacket2.Packet) {
	ipv6 := pkt.Data[pkt.NetworkStart : pkt.NetworkStart+40]
	var src, dst [16]byte
	copy(src[:], ipv6[8:24])
	copy(dst[:], ipv6[24:40])
	tcp := pkt.Data[pkt.TransportStart:]
	tcp[16], tcp[17] = 0, 0
	pseudo := pseudoHeaderV6(src, dst, protoTCP, uint32(len(tcp)))
	sum := checksumFold(checksumAdd(pseudo, tcp))
	binary.BigEndian.PutUint16(tcp[16:18], sum)
}
