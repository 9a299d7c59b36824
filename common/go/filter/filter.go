// Package filter holds the plain-Go value types accepted by rule compilers
// (ACL-style net/port/proto rule sets, virtual-service match keys, …) before
// they are lowered into LPM tables.
package filter

import (
	"net/netip"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Device struct {
	Name string
}

type Devices []Device

type VlanRange struct {
	From uint16
	To   uint16
}

type VlanRanges []VlanRange

type IPNet4 struct {
	Addr netip.Addr
	Mask netip.Addr
}

type IPNet4s []IPNet4

type IPNet6 struct {
	Addr netip.Addr
	Mask netip.Addr
}

type IPNet6s []IPNet6

type ProtoRange struct {
	From uint16
	To   uint16
}

type ProtoRanges []ProtoRange

type PortRange struct {
	From uint16
	To   uint16
}

type PortRanges []PortRange

// RawIPNet is the wire-agnostic shape of an (addr, mask) pair as received
// from a config loader, before it is split by address family.
type RawIPNet struct {
	Addr []byte
	Mask []byte
}

func MakeDevices(names []string) Devices {
	result := make(Devices, len(names))
	for idx := range names {
		result[idx] = Device{Name: names[idx]}
	}
	return result
}

func MakeVlanRanges(ranges []VlanRange) (VlanRanges, error) {
	result := make(VlanRanges, len(ranges))

	for idx := range ranges {
		if ranges[idx].From > 4095 {
			return nil, status.Errorf(
				codes.InvalidArgument,
				"VLAN 'from' value %d exceeds maximum 4095", ranges[idx].From,
			)
		}
		if ranges[idx].To > 4095 {
			return nil, status.Errorf(
				codes.InvalidArgument,
				"VLAN 'to' value %d exceeds maximum 4095", ranges[idx].To,
			)
		}
		result[idx] = ranges[idx]
	}

	return result, nil
}

func MakeIPNet4s(nets []RawIPNet) (IPNet4s, error) {
	result := make(IPNet4s, 0, len(nets))

	for idx := range nets {
		if (len(nets[idx].Addr) != 4 && len(nets[idx].Addr) != 16) ||
			len(nets[idx].Addr) != len(nets[idx].Mask) {
			return nil, status.Error(codes.InvalidArgument, "invalid network address length")
		}

		if len(nets[idx].Addr) != 4 {
			continue
		}
		addr, _ := netip.AddrFromSlice(nets[idx].Addr)
		mask, _ := netip.AddrFromSlice(nets[idx].Mask)
		result = append(result, IPNet4{Addr: addr, Mask: mask})
	}

	return result, nil
}

func MakeIPNet6s(nets []RawIPNet) (IPNet6s, error) {
	result := make(IPNet6s, 0, len(nets))

	for idx := range nets {
		if (len(nets[idx].Addr) != 4 && len(nets[idx].Addr) != 16) ||
			len(nets[idx].Addr) != len(nets[idx].Mask) {
			return nil, status.Error(codes.InvalidArgument, "invalid network address length")
		}

		if len(nets[idx].Addr) != 16 {
			continue
		}
		addr, _ := netip.AddrFromSlice(nets[idx].Addr)
		mask, _ := netip.AddrFromSlice(nets[idx].Mask)
		result = append(result, IPNet6{Addr: addr, Mask: mask})
	}

	return result, nil
}

func MakeProtoRanges(ranges []ProtoRange) (ProtoRanges, error) {
	result := make(ProtoRanges, len(ranges))

	for idx := range ranges {
		if ranges[idx].From > ranges[idx].To {
			return nil, status.Errorf(
				codes.InvalidArgument,
				"protocol 'from' value %d is greater than 'to' value %d",
				ranges[idx].From, ranges[idx].To,
			)
		}
		result[idx] = ranges[idx]
	}

	return result, nil
}

func MakePortRanges(ranges []PortRange) (PortRanges, error) {
	result := make(PortRanges, len(ranges))

	for idx := range ranges {
		if ranges[idx].From > ranges[idx].To {
			return nil, status.Errorf(
				codes.InvalidArgument,
				"port 'from' value %d is greater than 'to' value %d",
				ranges[idx].From, ranges[idx].To,
			)
		}
		result[idx] = ranges[idx]
	}

	return result, nil
}
