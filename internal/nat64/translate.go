package nat64

import (
	"encoding/binary"
	"net/netip"
)

const (
	ipv4HeaderLen = 20
	ipv6HeaderLen = 40
	fragHeaderLen = 8
)

type v6Header struct {
	trafficClass byte
	flowLabel    uint32
	nextHeader   uint8
	hopLimit     uint8
	src, dst     netip.Addr
	payloadLen   int
}

func parseV6Header(pkt []byte) (v6Header, error) {
	if len(pkt) < ipv6HeaderLen {
		return v6Header{}, ErrMalformed
	}
	if pkt[0]>>4 != 6 {
		return v6Header{}, ErrMalformed
	}
	var srcB, dstB [16]byte
	copy(srcB[:], pkt[8:24])
	copy(dstB[:], pkt[24:40])
	return v6Header{
		trafficClass: (pkt[0]<<4 | pkt[1]>>4),
		nextHeader:   pkt[6],
		hopLimit:     pkt[7],
		src:          netip.AddrFrom16(srcB),
		dst:          netip.AddrFrom16(dstB),
		payloadLen:   int(binary.BigEndian.Uint16(pkt[4:6])),
	}, nil
}

type fragInfo struct {
	present    bool
	id         uint32
	offset     uint16 // in 8-byte units
	moreFrags  bool
	nextHeader uint8
}

// IPv6 extension header next-header values (RFC 8200 §4).
const (
	extHopByHop    = 0
	extRouting     = 43
	extAH          = 51
	extESP         = 50
	extDestOptions = 60
)

// maxExtHeaders bounds the extension chain walk (spec §4.7 step 2: "count
// at most 8 headers").
const maxExtHeaders = 8

// walkV6Extensions walks the IPv6 extension header chain starting at
// offset, returning the offset of the upper-layer payload, the protocol
// number that precedes it, and any Fragment header found along the way.
// Per spec §4.7 step 2: Hop-by-Hop is only accepted as the first
// extension, Destination Options is capped at two occurrences, a
// Routing header of type 0 is rejected outright, and AH/ESP are always
// rejected (neither carries a translatable upper-layer payload this
// port understands). Fragment is the only extension this port needs to
// extract fields from; it is treated as terminal, matching how the
// original C nat64 datapath never expects extensions to follow it.
func walkV6Extensions(pkt []byte, offset int, nextHeader uint8) (int, uint8, fragInfo, error) {
	var fi fragInfo
	sawHopByHop := false
	destOptions := 0

	for i := 0; i < maxExtHeaders; i++ {
		switch nextHeader {
		case extHopByHop:
			if sawHopByHop || i != 0 {
				return 0, 0, fragInfo{}, ErrTranslationUnsupported
			}
			sawHopByHop = true
		case extDestOptions:
			destOptions++
			if destOptions > 2 {
				return 0, 0, fragInfo{}, ErrTranslationUnsupported
			}
		case extRouting:
			if offset+3 > len(pkt) {
				return 0, 0, fragInfo{}, ErrMalformed
			}
			if pkt[offset+2] == 0 { // Routing Type 0
				return 0, 0, fragInfo{}, ErrTranslationUnsupported
			}
		case extAH, extESP:
			return 0, 0, fragInfo{}, ErrTranslationUnsupported
		case protoFrag6:
			if offset+fragHeaderLen > len(pkt) {
				return 0, 0, fragInfo{}, ErrMalformed
			}
			frag := pkt[offset : offset+fragHeaderLen]
			fi = fragInfo{
				present:    true,
				nextHeader: frag[0],
				offset:     binary.BigEndian.Uint16(frag[2:4]) >> 3,
				moreFrags:  frag[3]&1 != 0,
				id:         binary.BigEndian.Uint32(frag[4:8]),
			}
			return offset + fragHeaderLen, fi.nextHeader, fi, nil
		default:
			// Not an extension header this port walks further: either the
			// upper-layer protocol or something it doesn't recognize.
			// Either way, stop here and let the caller's protocol check
			// decide whether to proceed or reject.
			return offset, nextHeader, fi, nil
		}

		// Hop-by-Hop, Destination Options, and Routing share the same
		// "next header, hdr ext len" framing (RFC 8200 §4.3-4.5): total
		// length is (hdrExtLen+1)*8 bytes.
		if offset+2 > len(pkt) {
			return 0, 0, fragInfo{}, ErrMalformed
		}
		hdrLen := (int(pkt[offset+1]) + 1) * 8
		if offset+hdrLen > len(pkt) {
			return 0, 0, fragInfo{}, ErrMalformed
		}
		nextHeader = pkt[offset]
		offset += hdrLen
	}
	return 0, 0, fragInfo{}, ErrTranslationUnsupported
}

// TranslateV6ToV4 translates one IPv6 datagram (starting at the IPv6
// header, no link-layer framing) into an IPv4 datagram per RFC 7915 §5.
func TranslateV6ToV4(c *Config, pkt []byte) ([]byte, error) {
	hdr, err := parseV6Header(pkt)
	if err != nil {
		return nil, err
	}

	// Step 1: resolve addresses before touching the extension chain, so an
	// unknown mapping/prefix can pass the packet through untranslated
	// regardless of what the rest of the header looks like.
	srcV4, err := c.translateToV4(hdr.src)
	if err != nil {
		return nil, err
	}
	dstV4, err := c.translateToV4(hdr.dst)
	if err != nil {
		return nil, err
	}

	offset, nextHeader, frag, err := walkV6Extensions(pkt, ipv6HeaderLen, hdr.nextHeader)
	if err != nil {
		return nil, err
	}
	if nextHeader != protoTCP && nextHeader != protoUDP && nextHeader != protoICMPv6 {
		return nil, ErrTranslationUnsupported
	}
	if offset > len(pkt) {
		return nil, ErrMalformed
	}
	payload := pkt[offset:]

	var outProto uint8
	var outPayload []byte
	switch nextHeader {
	case protoICMPv6:
		outPayload, err = translateICMPv6ToV4(c, payload)
		if err != nil {
			return nil, err
		}
		outProto = protoICMPv4
	case protoTCP:
		outPayload = append([]byte(nil), payload...)
		fixTransportChecksumV6ToV4(outPayload, 16, srcV4, dstV4, protoTCP)
		outProto = protoTCP
	case protoUDP:
		outPayload = append([]byte(nil), payload...)
		fixTransportChecksumV6ToV4(outPayload, 6, srcV4, dstV4, protoUDP)
		outProto = protoUDP
	}

	out := make([]byte, ipv4HeaderLen+len(outPayload))
	buildIPv4Header(out, hdr, frag, outProto, srcV4, dstV4, len(outPayload))
	copy(out[ipv4HeaderLen:], outPayload)
	return out, nil
}

func buildIPv4Header(out []byte, hdr v6Header, frag fragInfo, proto uint8, src, dst netip.Addr, payloadLen int) {
	out[0] = 0x45 // version 4, IHL 5 (no options)
	out[1] = hdr.trafficClass
	binary.BigEndian.PutUint16(out[2:4], uint16(ipv4HeaderLen+payloadLen))

	var id uint16
	var flagsFrag uint16
	if frag.present {
		id = uint16(frag.id)
		flagsFrag = frag.offset & 0x1fff
		if frag.moreFrags {
			flagsFrag |= 0x2000
		}
	} else {
		flagsFrag = 0x4000 // DF=1, not fragmented
	}
	binary.BigEndian.PutUint16(out[4:6], id)
	binary.BigEndian.PutUint16(out[6:8], flagsFrag)

	ttl := hdr.hopLimit
	if ttl > 0 {
		ttl--
	}
	out[8] = ttl
	out[9] = proto
	binary.BigEndian.PutUint16(out[10:12], 0)

	v4src := src.As4()
	v4dst := dst.As4()
	copy(out[12:16], v4src[:])
	copy(out[16:20], v4dst[:])

	sum := ipv4HeaderChecksum(out[:ipv4HeaderLen])
	binary.BigEndian.PutUint16(out[10:12], sum)
}

func fixTransportChecksumV6ToV4(payload []byte, checksumOffset int, newSrc, newDst netip.Addr, proto uint8) {
	if checksumOffset+2 > len(payload) {
		return
	}
	pseudo := pseudoHeaderV4(newSrc.As4(), newDst.As4(), proto, uint16(len(payload)))
	recomputeTransportChecksum(payload, checksumOffset, pseudo)
}

// TranslateV4ToV6 translates one IPv4 datagram (starting at the IPv4
// header, no link-layer framing) into an IPv6 datagram per RFC 7915 §4.
// IPv4 options are skipped, except that a fragment whose header carries
// options is rejected (Open Question 4 below).
func TranslateV4ToV6(c *Config, pkt []byte) ([]byte, error) {
	if len(pkt) < ipv4HeaderLen {
		return nil, ErrMalformed
	}
	if pkt[0]>>4 != 4 {
		return nil, ErrMalformed
	}
	ihl := int(pkt[0]&0x0f) * 4
	hasOptions := ihl > ipv4HeaderLen
	totalLen := int(binary.BigEndian.Uint16(pkt[2:4]))
	id := binary.BigEndian.Uint16(pkt[4:6])
	flagsFrag := binary.BigEndian.Uint16(pkt[6:8])
	mf := flagsFrag&0x2000 != 0
	fragOffsetBytes := (flagsFrag & 0x1fff) * 8
	ttl := pkt[8]
	proto := pkt[9]
	var srcB, dstB [4]byte
	copy(srcB[:], pkt[12:16])
	copy(dstB[:], pkt[16:20])

	// Only an actual fragment (MF set or a non-zero offset) gets an IPv6
	// Fragment header.
	needsFragHeader := mf || fragOffsetBytes != 0
	if hasOptions && needsFragHeader {
		// Open Question 4: the ported C implementation does not
		// translate an IPv4 header carrying options together with
		// fragmentation; this port keeps that restriction rather
		// than silently reassembling or dropping options (see
		// DESIGN.md).
		return nil, ErrTranslationUnsupported
	}
	if ihl > len(pkt) || totalLen > len(pkt) || totalLen < ihl {
		return nil, ErrMalformed
	}
	if proto != protoTCP && proto != protoUDP && proto != protoICMPv4 {
		return nil, ErrTranslationUnsupported
	}

	payload := pkt[ihl:totalLen]
	srcV4 := netip.AddrFrom4(srcB)
	dstV4 := netip.AddrFrom4(dstB)

	srcV6, err := c.translateToV6(srcV4)
	if err != nil {
		return nil, err
	}
	dstV6, err := c.translateToV6(dstV4)
	if err != nil {
		return nil, err
	}

	var nextHeader uint8
	var outPayload []byte
	switch proto {
	case protoICMPv4:
		outPayload, err = translateICMPv4ToV6(c, payload)
		if err != nil {
			return nil, err
		}
		pseudo := pseudoHeaderV6(srcV6.As16(), dstV6.As16(), protoICMPv6, uint32(len(outPayload)))
		recomputeTransportChecksum(outPayload, 2, pseudo)
		nextHeader = protoICMPv6
	case protoTCP:
		outPayload = append([]byte(nil), payload...)
		fixTransportChecksumV4ToV6(outPayload, 16, srcV6, dstV6, protoTCP)
		nextHeader = protoTCP
	case protoUDP:
		outPayload = append([]byte(nil), payload...)
		fixTransportChecksumV4ToV6(outPayload, 6, srcV6, dstV6, protoUDP)
		nextHeader = protoUDP
	}

	extraLen := 0
	if needsFragHeader {
		extraLen = fragHeaderLen
	}
	out := make([]byte, ipv6HeaderLen+extraLen+len(outPayload))

	tc := pkt[1]
	out[0] = 0x60 | (tc >> 4)
	out[1] = tc << 4
	out[2], out[3] = 0, 0
	binary.BigEndian.PutUint16(out[4:6], uint16(extraLen+len(outPayload)))
	hopLimit := ttl
	if hopLimit > 0 {
		hopLimit--
	}
	out[7] = hopLimit
	v6src := srcV6.As16()
	v6dst := dstV6.As16()
	copy(out[8:24], v6src[:])
	copy(out[24:40], v6dst[:])

	payloadStart := ipv6HeaderLen
	if needsFragHeader {
		out[6] = protoFrag6
		frag := out[ipv6HeaderLen : ipv6HeaderLen+fragHeaderLen]
		frag[0] = nextHeader
		frag[1] = 0
		fo := fragOffsetBytes / 8
		ffield := fo << 3
		if mf {
			ffield |= 1
		}
		binary.BigEndian.PutUint16(frag[2:4], ffield)
		binary.BigEndian.PutUint32(frag[4:8], uint32(id))
		payloadStart += fragHeaderLen
	} else {
		out[6] = nextHeader
	}

	copy(out[payloadStart:], outPayload)
	return out, nil
}

func fixTransportChecksumV4ToV6(payload []byte, checksumOffset int, newSrc, newDst netip.Addr, proto uint8) {
	if checksumOffset+2 > len(payload) {
		return
	}
	pseudo := pseudoHeaderV6(newSrc.As16(), newDst.As16(), proto, uint32(len(payload)))
	recomputeTransportChecksum(payload, checksumOffset, pseudo)
}
