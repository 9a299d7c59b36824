package nat64

import "encoding/binary"

// ICMPv6 and ICMPv4 type values this translator understands.
const (
	icmp6EchoRequest   = 128
	icmp6EchoReply     = 129
	icmp6DestUnreach   = 1
	icmp6PacketTooBig  = 2
	icmp6TimeExceeded  = 3
	icmp6ParamProblem  = 4

	icmp4EchoRequest  = 8
	icmp4EchoReply    = 0
	icmp4DestUnreach  = 3
	icmp4TimeExceeded = 11
	icmp4ParamProblem = 12

	icmp4CodeFragNeeded = 4
)

// destUnreachV6ToV4 maps ICMPv6 Destination Unreachable codes to their
// ICMPv4 equivalents (RFC 7915 §4.2/§5.2, representative subset).
var destUnreachV6ToV4 = map[uint8]uint8{
	0: 1, // no route to destination -> host unreachable
	1: 10, // administratively prohibited -> host admin prohibited
	3: 1, // address unreachable -> host unreachable
	4: 3, // port unreachable -> port unreachable
}

var destUnreachV4ToV6 = map[uint8]uint8{
	0: 0, // net unreachable -> no route to destination
	1: 0, // host unreachable -> no route to destination
	2: 4, // protocol unreachable -> port unreachable (closest v6 code)
	3: 4, // port unreachable -> port unreachable
	9: 1, // network admin prohibited -> admin prohibited
	10: 1, // host admin prohibited -> admin prohibited
	13: 1, // communication admin prohibited -> admin prohibited
}

// paramProblemPtrV6ToV4 maps IPv6 header byte offsets to their IPv4
// header equivalents (RFC 7915 Appendix A); offsets with no IPv4
// counterpart are intentionally absent.
var paramProblemPtrV6ToV4 = map[uint32]uint8{
	0: 0,  // version/traffic class
	1: 1,  // traffic class
	4: 2,  // payload length
	6: 9,  // next header -> protocol
	7: 8,  // hop limit -> TTL
	8: 12, // source address
	24: 16, // destination address
}

var paramProblemPtrV4ToV6 = func() map[uint8]uint32 {
	inv := make(map[uint8]uint32, len(paramProblemPtrV6ToV4))
	for v6, v4 := range paramProblemPtrV6ToV4 {
		if _, exists := inv[v4]; !exists {
			inv[v4] = v6
		}
	}
	return inv
}()

func translateICMPv6ToV4(c *Config, payload []byte) ([]byte, error) {
	if len(payload) < 8 {
		return nil, ErrMalformed
	}
	typ, code := payload[0], payload[1]
	out := append([]byte(nil), payload...)

	hasEmbedded := false
	switch typ {
	case icmp6EchoRequest:
		out[0], out[1] = icmp4EchoRequest, 0
	case icmp6EchoReply:
		out[0], out[1] = icmp4EchoReply, 0
	case icmp6DestUnreach:
		v4code, ok := destUnreachV6ToV4[code]
		if !ok {
			return nil, ErrTranslationUnsupported
		}
		out[0], out[1] = icmp4DestUnreach, v4code
		hasEmbedded = true
	case icmp6PacketTooBig:
		mtu := binary.BigEndian.Uint32(payload[4:8])
		adjusted := adjustMTUv6ToV4(c, mtu)
		out[0], out[1] = icmp4DestUnreach, icmp4CodeFragNeeded
		binary.BigEndian.PutUint16(out[4:6], 0)
		binary.BigEndian.PutUint16(out[6:8], uint16(adjusted))
		hasEmbedded = true
	case icmp6TimeExceeded:
		out[0], out[1] = icmp4TimeExceeded, code
		hasEmbedded = true
	case icmp6ParamProblem:
		ptr := binary.BigEndian.Uint32(payload[4:8])
		v4ptr, ok := paramProblemPtrV6ToV4[ptr]
		if !ok {
			return nil, ErrTranslationUnsupported
		}
		out[0], out[1] = icmp4ParamProblem, 0
		out[4], out[5], out[6], out[7] = v4ptr, 0, 0, 0
		hasEmbedded = true
	default:
		return nil, ErrTranslationUnsupported
	}

	if hasEmbedded {
		translated, err := translateEmbeddedV6ToV4(c, out)
		if err != nil {
			return nil, err
		}
		out = translated
	}

	binary.BigEndian.PutUint16(out[2:4], 0)
	sum := checksumFold(checksumAdd(0, out))
	binary.BigEndian.PutUint16(out[2:4], sum)
	return out, nil
}

func translateICMPv4ToV6(c *Config, payload []byte) ([]byte, error) {
	if len(payload) < 8 {
		return nil, ErrMalformed
	}
	typ, code := payload[0], payload[1]
	out := append([]byte(nil), payload...)

	switch typ {
	case icmp4EchoRequest:
		out[0], out[1] = icmp6EchoRequest, 0
	case icmp4EchoReply:
		out[0], out[1] = icmp6EchoReply, 0
	case icmp4DestUnreach:
		if code == icmp4CodeFragNeeded {
			mtu := uint32(binary.BigEndian.Uint16(payload[6:8]))
			adjusted := adjustMTUv4ToV6(c, mtu)
			out[0], out[1] = icmp6PacketTooBig, 0
			binary.BigEndian.PutUint32(out[4:8], adjusted)
		} else {
			v6code, ok := destUnreachV4ToV6[code]
			if !ok {
				return nil, ErrTranslationUnsupported
			}
			out[0], out[1] = icmp6DestUnreach, v6code
			binary.BigEndian.PutUint32(out[4:8], 0)
		}
	case icmp4TimeExceeded:
		out[0], out[1] = icmp6TimeExceeded, code
	case icmp4ParamProblem:
		ptr := out[4]
		v6ptr, ok := paramProblemPtrV4ToV6[ptr]
		if !ok {
			return nil, ErrTranslationUnsupported
		}
		out[0], out[1] = icmp6ParamProblem, 0
		binary.BigEndian.PutUint32(out[4:8], v6ptr)
	default:
		return nil, ErrTranslationUnsupported
	}

	// ICMPv6 checksum includes a pseudo-header, computed by the caller
	// (TranslateV4ToV6) once the new src/dst IPv6 addresses are known;
	// it is left unset here and fixed up there.
	return out, nil
}

// adjustMTUv6ToV4 applies RFC 7915 §5.2's Packet Too Big -> Fragmentation
// Needed MTU arithmetic: the IPv4 header is 20 bytes smaller than the
// minimum translated IPv6 path needs to carry, so the advertised MTU
// shrinks by that delta, clamped by the module's configured MTUs.
func adjustMTUv6ToV4(c *Config, mtu uint32) uint32 {
	const delta = 20
	if mtu == 0 {
		mtu = c.MTUv4 + delta
	}
	adjusted := mtu
	if adjusted > delta {
		adjusted -= delta
	} else {
		adjusted = 0
	}
	if c.MTUv6 > delta && c.MTUv6-delta < adjusted {
		adjusted = c.MTUv6 - delta
	}
	if c.MTUv4 > 0 && c.MTUv4 < adjusted {
		adjusted = c.MTUv4
	}
	return adjusted
}

// adjustMTUv4ToV6 is the reverse direction: the IPv6 path gains 20 bytes
// of header overhead versus the quoted IPv4 MTU.
func adjustMTUv4ToV6(c *Config, mtu uint32) uint32 {
	const delta = 20
	adjusted := mtu + delta
	if c.MTUv6 > 0 && c.MTUv6 < adjusted {
		adjusted = c.MTUv6
	}
	return adjusted
}

// translateEmbeddedV6ToV4 replaces the quoted IPv6 header that follows an
// ICMPv6 error's 8-byte fixed part with its IPv4 equivalent, returning a
// new, shorter buffer. Only the header is translated; the quoted
// transport bytes (and their checksum) are carried over unchanged,
// matching RFC 7915's treatment of quoted packets as informational
// rather than reconstructible.
func translateEmbeddedV6ToV4(c *Config, in []byte) ([]byte, error) {
	if len(in) < 8+ipv6HeaderLen {
		return nil, ErrMalformed
	}
	embedded := in[8:]
	hdr, err := parseV6Header(embedded)
	if err != nil {
		return nil, err
	}
	srcV4, err := c.translateToV4(hdr.src)
	if err != nil {
		return nil, err
	}
	dstV4, err := c.translateToV4(hdr.dst)
	if err != nil {
		return nil, err
	}

	quoted := embedded[ipv6HeaderLen:]
	out := make([]byte, 0, 8+ipv4HeaderLen+len(quoted))
	out = append(out, in[:8]...)

	v4hdr := make([]byte, ipv4HeaderLen)
	buildIPv4Header(v4hdr, hdr, fragInfo{}, protocolFor(hdr.nextHeader), srcV4, dstV4, len(quoted))
	out = append(out, v4hdr...)
	out = append(out, quoted...)
	return out, nil
}

func protocolFor(nextHeader uint8) uint8 {
	if nextHeader == protoICMPv6 {
		return protoICMPv4
	}
	return nextHeader
}
