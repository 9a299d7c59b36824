// Package xpacket2 implements the packet representation and header
// parsing used by the worker loop and modules (spec §3/§4, C11): a packet
// carries parsed offsets into its own byte buffer rather than a tree of
// gopacket layer objects, so repeated header rewrites (NAT64, encap, MSS
// clamp) stay cheap in-place slice mutations, the way the ported C code
// keeps raw offsets into an mbuf. gopacket is still used for the one thing
// it's good at here: decoding variable-length header chains once per
// packet (common/go/xpacket's LayersToPacket builds the test fixtures
// Parse is exercised against).
package xpacket2

import (
	"fmt"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// NetworkProto distinguishes the network-layer header a packet carries.
type NetworkProto uint8

const (
	NetworkNone NetworkProto = iota
	NetworkIPv4
	NetworkIPv6
)

// TransportProto distinguishes the transport-layer header a packet
// carries.
type TransportProto uint8

const (
	TransportNone TransportProto = iota
	TransportTCP
	TransportUDP
	TransportICMP
	TransportICMPv6
	TransportGRE
)

// Verdict is what a module decided to do with a packet (spec §3 "packet
// front"): continue on to the next module's input, or leave the
// pipeline via drop/pending.
type Verdict int

const (
	VerdictOutput Verdict = iota
	VerdictDrop
	VerdictPending
)

// Packet is one in-flight packet: a raw buffer plus parsed offsets into
// it. Offsets are byte indices into Data, not pointers, so packets remain
// trivially relocatable (e.g. when re-slicing Data after header rewrite).
type Packet struct {
	Data []byte

	VLAN         uint16
	InputDevice  string
	OutputDevice string

	NetworkProto   NetworkProto
	NetworkStart   int
	TransportProto TransportProto
	TransportStart int

	// Hash is a flow hash computed once at parse time and reused by
	// downstream modules (balancer session lookup, ECMP) instead of
	// rehashing the 5-tuple repeatedly.
	Hash uint32

	Verdict Verdict

	// Next chains packets within a packet front's input/output/drop/
	// pending lists (spec §3).
	Next *Packet
}

// Front owns the four worker-local packet lists a module pipeline drains
// and refills each iteration (spec §3 "packet front").
type Front struct {
	Input, Output, Drop, Pending *Packet
}

// PushOutput prepends p to the front's output list. Modules call this (or
// PushDrop/PushPending) exactly once per packet they pop from Input.
func (f *Front) PushOutput(p *Packet) {
	p.Verdict = VerdictOutput
	p.Next = f.Output
	f.Output = p
}

// PushDrop prepends p to the front's drop list.
func (f *Front) PushDrop(p *Packet) {
	p.Verdict = VerdictDrop
	p.Next = f.Drop
	f.Drop = p
}

// PushPending prepends p to the front's pending list (e.g. held for
// fragment reassembly).
func (f *Front) PushPending(p *Packet) {
	p.Verdict = VerdictPending
	p.Next = f.Pending
	f.Pending = p
}

// PushInput prepends p to the front's input list, used when grouping
// freshly polled packets by the pipeline that will process them.
func (f *Front) PushInput(p *Packet) {
	p.Next = f.Input
	f.Input = p
}

// PopInput removes and returns the head of the input list, or nil when
// exhausted.
func (f *Front) PopInput() *Packet {
	p := f.Input
	if p != nil {
		f.Input = p.Next
		p.Next = nil
	}
	return p
}

// Advance concatenates Output onto a fresh Input for the next module and
// clears Output, Drop and Pending are left for the worker loop to
// account and free (spec §3: "after all packets are consumed, the worker
// concatenates output into the next module's input").
func (f *Front) Advance() {
	f.Input = f.Output
	f.Output = nil
}

// Parse decodes an Ethernet frame's VLAN tag, network and transport
// headers, recording byte offsets rather than retaining gopacket's layer
// objects past this call.
func Parse(data []byte, inputDevice string) (*Packet, error) {
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)
	if errLayer := pkt.ErrorLayer(); errLayer != nil {
		return nil, fmt.Errorf("xpacket2: parse: %w", errLayer.Error())
	}

	p := &Packet{Data: data, InputDevice: inputDevice}

	offset := 0
	for _, l := range pkt.Layers() {
		switch layer := l.(type) {
		case *layers.Dot1Q:
			p.VLAN = layer.VLANIdentifier
		case *layers.IPv4:
			p.NetworkProto = NetworkIPv4
			p.NetworkStart = offset
		case *layers.IPv6:
			p.NetworkProto = NetworkIPv6
			p.NetworkStart = offset
		case *layers.TCP:
			p.TransportProto = TransportTCP
			p.TransportStart = offset
			p.Hash = fiveTupleHash(pkt)
		case *layers.UDP:
			p.TransportProto = TransportUDP
			p.TransportStart = offset
			p.Hash = fiveTupleHash(pkt)
		case *layers.ICMPv4:
			p.TransportProto = TransportICMP
			p.TransportStart = offset
		case *layers.ICMPv6:
			p.TransportProto = TransportICMPv6
			p.TransportStart = offset
		case *layers.GRE:
			p.TransportProto = TransportGRE
			p.TransportStart = offset
		}
		offset += len(l.LayerContents())
	}

	return p, nil
}

// fiveTupleHash derives a flow hash from the network and transport layers
// gopacket decoded, used for ECMP/session-table bucket selection.
func fiveTupleHash(pkt gopacket.Packet) uint32 {
	var mix uint64
	if net := pkt.NetworkLayer(); net != nil {
		mix ^= net.NetworkFlow().FastHash()
	}
	if t := pkt.TransportLayer(); t != nil {
		mix ^= t.TransportFlow().FastHash()
	}
	return uint32(mix) ^ uint32(mix>>32)
}
