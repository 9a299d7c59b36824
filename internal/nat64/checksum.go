package nat64

import "encoding/binary"

// checksumAdd folds b (treated as a sequence of big-endian 16-bit words,
// zero-padded if odd length) into the running one's-complement sum acc.
func checksumAdd(acc uint32, b []byte) uint32 {
	for i := 0; i+1 < len(b); i += 2 {
		acc += uint32(binary.BigEndian.Uint16(b[i : i+2]))
	}
	if len(b)%2 == 1 {
		acc += uint32(b[len(b)-1]) << 8
	}
	return acc
}

func checksumFold(acc uint32) uint16 {
	for acc>>16 != 0 {
		acc = (acc & 0xffff) + (acc >> 16)
	}
	return ^uint16(acc)
}

// pseudoHeaderV4 sums the IPv4 TCP/UDP pseudo-header.
func pseudoHeaderV4(src, dst [4]byte, proto uint8, length uint16) uint32 {
	var acc uint32
	acc = checksumAdd(acc, src[:])
	acc = checksumAdd(acc, dst[:])
	acc += uint32(proto)
	acc += uint32(length)
	return acc
}

// pseudoHeaderV6 sums the IPv6 TCP/UDP/ICMPv6 pseudo-header.
func pseudoHeaderV6(src, dst [16]byte, nextHeader uint8, length uint32) uint32 {
	var acc uint32
	acc = checksumAdd(acc, src[:])
	acc = checksumAdd(acc, dst[:])
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], length)
	acc = checksumAdd(acc, lenBuf[:])
	acc += uint32(nextHeader)
	return acc
}

// recomputeTransportChecksum zeroes then recomputes the checksum field at
// checksumOffset within payload, over the pseudo-header sum plus payload.
func recomputeTransportChecksum(payload []byte, checksumOffset int, pseudo uint32) {
	payload[checksumOffset] = 0
	payload[checksumOffset+1] = 0
	acc := checksumAdd(pseudo, payload)
	sum := checksumFold(acc)
	binary.BigEndian.PutUint16(payload[checksumOffset:], sum)
}

// ipv4HeaderChecksum computes the IPv4 header checksum over hdr (with the
// checksum field already zeroed by the caller).
func ipv4HeaderChecksum(hdr []byte) uint16 {
	return checksumFold(checksumAdd(0, hdr))
}
