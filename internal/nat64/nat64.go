// Package nat64 implements the stateless NAT64 translator (spec §3/§4,
// C12), following RFC 7915's header-translation algorithm. It is grounded
// on modules/nat64/dataplane/nat64dp.c's structure (address resolution via
// an explicit mapping table falling back to prefix-embedded extraction,
// the MTU-adjustment arithmetic for Packet Too Big / Fragmentation Needed,
// and the documented Open Question 4 restriction) without reproducing its
// DPDK-specific mbuf plumbing.
package nat64

import (
	"errors"
	"net/netip"

	"github.com/sakateka/yanet2-sub001/common/go/xnetip"
	"github.com/sakateka/yanet2-sub001/internal/lpm"
)

// Errors a translation attempt can fail with.
var (
	ErrUnknownMapping        = errors.New("nat64: no mapping or prefix covers address")
	ErrTranslationUnsupported = errors.New("nat64: unsupported header combination")
	ErrMalformed              = errors.New("nat64: malformed packet")

	// ErrPassThrough is returned in place of ErrUnknownMapping when an
	// address resolves to neither an explicit mapping nor a translation
	// prefix and neither DropUnknownMapping nor DropUnknownPrefix is set
	// (spec §4.7 step 1: "Missing ... drop; else pass through"). Callers
	// forward the original packet unmodified instead of dropping it.
	ErrPassThrough = errors.New("nat64: no mapping or prefix covers address, passing through")
)

// Mapping is one explicit, statically provisioned IPv4<->IPv6 pairing
// (spec §3 NAT64 config "mapping_list").
type Mapping struct {
	IPv4        netip.Addr
	IPv6        netip.Addr
	PrefixIndex int
}

// Prefix is a NAT64 translation prefix (spec §3 "prefixes: [{prefix[12]}]"
// — a /96 under which an embedded IPv4 address occupies the last 32
// bits, RFC 6052).
type Prefix struct {
	Addr netip.Addr // the /96 network address; low 32 bits must be zero
}

// Embed returns the IPv6 address formed by embedding v4 under p.
func (p Prefix) Embed(v4 netip.Addr) netip.Addr {
	b := p.Addr.As16()
	v4b := v4.As4()
	copy(b[12:], v4b[:])
	return netip.AddrFrom16(b)
}

// Extract returns the IPv4 address embedded in the low 32 bits of addr,
// if addr falls under p.
func (p Prefix) Extract(addr netip.Addr) (netip.Addr, bool) {
	b := addr.As16()
	pb := p.Addr.As16()
	if [12]byte(b[:12]) != [12]byte(pb[:12]) {
		return netip.Addr{}, false
	}
	var v4 [4]byte
	copy(v4[:], b[12:])
	return netip.AddrFrom4(v4), true
}

// Config is the NAT64 module configuration (spec §3 "NAT64 config").
type Config struct {
	MappingsV4ToV6 *lpm.LPM // 4-byte keys -> index into MappingList
	MappingsV6ToV4 *lpm.LPM // 16-byte keys -> index into MappingList
	MappingList    []Mapping

	Prefixes    []Prefix
	PrefixesLPM *lpm.LPM // 16-byte keys -> index into Prefixes

	MTUv4 uint32
	MTUv6 uint32

	// DropUnknownPrefix and DropUnknownMapping gate what happens when an
	// address falls under neither an explicit Mapping nor a configured
	// Prefix: with the flag set, the packet is dropped (ErrUnknownMapping);
	// otherwise it is passed through untranslated (ErrPassThrough). Spec
	// §4.7 step 1 treats a miss against either mechanism as grounds for
	// the same drop-or-pass-through decision, so translateToV4/translateToV6
	// drop when either flag is set.
	DropUnknownPrefix  bool
	DropUnknownMapping bool
}

// NewConfig constructs an empty Config with initialized LPM tries.
func NewConfig(mtuV4, mtuV6 uint32) (*Config, error) {
	v4, err := lpm.New(4)
	if err != nil {
		return nil, err
	}
	v6, err := lpm.New(16)
	if err != nil {
		return nil, err
	}
	prefixLPM, err := lpm.New(16)
	if err != nil {
		return nil, err
	}
	return &Config{
		MappingsV4ToV6: v4,
		MappingsV6ToV4: v6,
		PrefixesLPM:    prefixLPM,
		MTUv4:          mtuV4,
		MTUv6:          mtuV6,
	}, nil
}

// AddMapping registers an explicit v4<->v6 pairing.
func (c *Config) AddMapping(m Mapping) error {
	idx := uint32(len(c.MappingList))
	c.MappingList = append(c.MappingList, m)
	v4b := m.IPv4.As4()
	if err := c.MappingsV4ToV6.Insert(v4b[:], v4b[:], idx); err != nil {
		return err
	}
	v6b := m.IPv6.As16()
	return c.MappingsV6ToV4.Insert(v6b[:], v6b[:], idx)
}

// AddPrefix registers a translation prefix. The covered range is the
// /96 network p.Addr sits on; LastAddr fills in the wildcarded embedded-
// IPv4 bits the same way it would for any other prefix's broadcast
// address.
func (c *Config) AddPrefix(p Prefix) error {
	idx := uint32(len(c.Prefixes))
	c.Prefixes = append(c.Prefixes, p)
	start := p.Addr.As16()
	end := xnetip.LastAddr(netip.PrefixFrom(p.Addr, 96)).As16()
	return c.PrefixesLPM.Insert(start[:], end[:], idx)
}

// translateToV6 resolves the IPv6 address a v4 source/destination address
// should become: an explicit mapping first, then prefix embedding.
func (c *Config) translateToV6(v4 netip.Addr) (netip.Addr, error) {
	b := v4.As4()
	if idx := c.MappingsV4ToV6.Lookup(b[:]); idx != lpm.Invalid {
		return c.MappingList[idx].IPv6, nil
	}
	if len(c.Prefixes) > 0 {
		return c.Prefixes[0].Embed(v4), nil
	}
	if c.DropUnknownMapping || c.DropUnknownPrefix {
		return netip.Addr{}, ErrUnknownMapping
	}
	return netip.Addr{}, ErrPassThrough
}

// translateToV4 resolves the IPv4 address a v6 source/destination address
// should become: an explicit mapping first, then prefix extraction.
func (c *Config) translateToV4(v6 netip.Addr) (netip.Addr, error) {
	b := v6.As16()
	if idx := c.MappingsV6ToV4.Lookup(b[:]); idx != lpm.Invalid {
		return c.MappingList[idx].IPv4, nil
	}
	if idx := c.PrefixesLPM.Lookup(b[:]); idx != lpm.Invalid {
		if v4, ok := c.Prefixes[idx].Extract(v6); ok {
			return v4, nil
		}
	}
	if c.DropUnknownMapping || c.DropUnknownPrefix {
		return netip.Addr{}, ErrUnknownMapping
	}
	return netip.Addr{}, ErrPassThrough
}

// Protocol numbers this translator cares about.
const (
	protoICMPv4 = 1
	protoTCP    = 6
	protoUDP    = 17
	protoFrag6  = 44
	protoICMPv6 = 58
)
