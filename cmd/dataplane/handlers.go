package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/sakateka/yanet2-sub001/internal/balancer"
	"github.com/sakateka/yanet2-sub001/internal/config"
	"github.com/sakateka/yanet2-sub001/internal/nat64"
	"github.com/sakateka/yanet2-sub001/internal/xpacket2"
)

const (
	ethertypeIPv4 = 0x0800
	ethertypeIPv6 = 0x86DD
)

// nat64Handler adapts internal/nat64's stateless translation functions
// to the worker pipeline. Translation changes the network-layer header's
// length, so rather than mutate Packet fields in place it rebuilds the
// frame (original L2 prefix with a corrected ethertype, plus the
// translated L3-onward bytes) and reparses it.
func nat64Handler(front *xpacket2.Front, m config.Module) {
	cfg, _ := m.Data.(*nat64.Config)
	for p := front.PopInput(); p != nil; p = front.PopInput() {
		if cfg == nil {
			front.PushDrop(p)
			continue
		}

		translated, ethertype, err := translateNAT64(cfg, p)
		if errors.Is(err, nat64.ErrPassThrough) {
			front.PushOutput(p)
			continue
		}
		if err != nil {
			front.PushDrop(p)
			continue
		}

		l2 := append([]byte(nil), p.Data[:p.NetworkStart]...)
		if len(l2) >= 2 {
			binary.BigEndian.PutUint16(l2[len(l2)-2:], ethertype)
		}
		data := append(l2, translated...)

		out, err := xpacket2.Parse(data, p.InputDevice)
		if err != nil {
			front.PushDrop(p)
			continue
		}
		out.VLAN = p.VLAN
		out.OutputDevice = p.OutputDevice
		front.PushOutput(out)
	}
}

func translateNAT64(cfg *nat64.Config, p *xpacket2.Packet) ([]byte, uint16, error) {
	l3 := p.Data[p.NetworkStart:]
	switch p.NetworkProto {
	case xpacket2.NetworkIPv6:
		out, err := nat64.TranslateV6ToV4(cfg, l3)
		return out, ethertypeIPv4, err
	case xpacket2.NetworkIPv4:
		out, err := nat64.TranslateV4ToV6(cfg, l3)
		return out, ethertypeIPv6, err
	default:
		return nil, 0, fmt.Errorf("nat64: packet carries no IPv4/IPv6 header")
	}
}

// balancerHandler adapts internal/balancer's stateless-plus-session
// datapath to the worker pipeline: Process rewrites p in place (tunnel
// encapsulation) when it selects a real, so a selected packet is pushed
// straight to Output.
func balancerHandler(front *xpacket2.Front, m config.Module) {
	cfg, _ := m.Data.(*balancer.Config)
	for p := front.PopInput(); p != nil; p = front.PopInput() {
		if cfg == nil {
			front.PushDrop(p)
			continue
		}

		now := uint32(time.Now().Unix())
		_, reason, err := balancer.Process(cfg, now, p)
		if err != nil || reason != balancer.DropNone {
			front.PushDrop(p)
			continue
		}
		front.PushOutput(p)
	}
}
