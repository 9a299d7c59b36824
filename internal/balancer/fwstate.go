package balancer

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// Direction records which side of a flow a fwstate sync frame describes
// (spec §6 "fw_state_sync_frame payload encoding either v4 or v6 5-tuple
// plus direction flag").
type Direction uint8

const (
	DirectionForward Direction = iota
	DirectionReply
)

// FwStateSyncFrame is the wire encoding of one session-table entry,
// carried over the (out-of-scope) IPv6/UDP multicast sync channel (spec
// §3 supplement; no NIC I/O is implemented, only the frame codec other
// balancer instances would exchange).
type FwStateSyncFrame struct {
	TransportProto uint8
	NetworkProto   uint8
	Src, Dst       netip.Addr
	SrcPort        uint16
	DstPort        uint16
	Direction      Direction
	State          SessionState
}

// frame layout (fixed width, network byte order):
//
//	[0]      transport_proto
//	[1]      network_proto (4 or 41 -> decides v4 vs v6 address width)
//	[2]      direction
//	[3]      reserved
//	[4:20]   src address (left-padded to 16 bytes for v4)
//	[20:36]  dst address
//	[36:38]  src port
//	[38:40]  dst port
//	[40:44]  real id
//	[44:48]  create timestamp
//	[48:52]  last packet timestamp
//	[52:56]  timeout
const fwStateFrameLen = 56

// EncodeSyncFrame serializes f into a fixed-width wire frame.
func EncodeSyncFrame(f FwStateSyncFrame) []byte {
	buf := make([]byte, fwStateFrameLen)
	buf[0] = f.TransportProto
	buf[1] = f.NetworkProto
	buf[2] = uint8(f.Direction)

	srcBytes := addrBytes16(f.Src)
	dstBytes := addrBytes16(f.Dst)
	copy(buf[4:20], srcBytes[:])
	copy(buf[20:36], dstBytes[:])
	binary.BigEndian.PutUint16(buf[36:38], f.SrcPort)
	binary.BigEndian.PutUint16(buf[38:40], f.DstPort)
	binary.BigEndian.PutUint32(buf[40:44], f.State.RealID)
	binary.BigEndian.PutUint32(buf[44:48], f.State.CreateTimestamp)
	binary.BigEndian.PutUint32(buf[48:52], f.State.LastPacketTs)
	binary.BigEndian.PutUint32(buf[52:56], f.State.Timeout)
	return buf
}

// DecodeSyncFrame parses a wire frame previously produced by
// EncodeSyncFrame.
func DecodeSyncFrame(buf []byte) (FwStateSyncFrame, error) {
	if len(buf) != fwStateFrameLen {
		return FwStateSyncFrame{}, fmt.Errorf("balancer: fwstate frame wrong length %d (want %d)", len(buf), fwStateFrameLen)
	}
	var f FwStateSyncFrame
	f.TransportProto = buf[0]
	f.NetworkProto = buf[1]
	f.Direction = Direction(buf[2])

	var srcB, dstB [16]byte
	copy(srcB[:], buf[4:20])
	copy(dstB[:], buf[20:36])
	if f.NetworkProto == protoIPv4 {
		var s4, d4 [4]byte
		copy(s4[:], srcB[12:16])
		copy(d4[:], dstB[12:16])
		f.Src = netip.AddrFrom4(s4)
		f.Dst = netip.AddrFrom4(d4)
	} else {
		f.Src = netip.AddrFrom16(srcB)
		f.Dst = netip.AddrFrom16(dstB)
	}

	f.SrcPort = binary.BigEndian.Uint16(buf[36:38])
	f.DstPort = binary.BigEndian.Uint16(buf[38:40])
	f.State.RealID = binary.BigEndian.Uint32(buf[40:44])
	f.State.CreateTimestamp = binary.BigEndian.Uint32(buf[44:48])
	f.State.LastPacketTs = binary.BigEndian.Uint32(buf[48:52])
	f.State.Timeout = binary.BigEndian.Uint32(buf[52:56])
	return f, nil
}

func addrBytes16(a netip.Addr) [16]byte {
	if a.Is4() {
		b4 := a.As4()
		var b16 [16]byte
		copy(b16[12:16], b4[:])
		return b16
	}
	return a.As16()
}
