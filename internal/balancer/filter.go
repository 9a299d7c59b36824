package balancer

import (
	"fmt"

	"github.com/sakateka/yanet2-sub001/common/go/filter"
	"github.com/sakateka/yanet2-sub001/internal/lpm"
)

// BuildSrcFilterV4 lowers a declarative IPv4 allowlist into the LPM a
// VS's SrcFilter checks incoming source addresses against (spec S1 "src
// allowlist"). An empty list yields a non-nil, always-empty LPM rather
// than nil, so callers who want "allow all" set VS.SrcFilter to nil
// themselves instead of calling this with no entries.
func BuildSrcFilterV4(nets filter.IPNet4s) (*lpm.LPM, error) {
	l, err := lpm.New(4)
	if err != nil {
		return nil, fmt.Errorf("balancer: build ipv4 src filter: %w", err)
	}
	for i, n := range nets {
		start := n.Addr.As4()
		mask := n.Mask.As4()
		var end [4]byte
		for b := range start {
			start[b] &= mask[b]
			end[b] = start[b] | ^mask[b]
		}
		if err := l.Insert(start[:], end[:], uint32(i)); err != nil {
			return nil, fmt.Errorf("balancer: insert ipv4 src filter entry %d: %w", i, err)
		}
	}
	return l, nil
}

// BuildSrcFilterV6 is BuildSrcFilterV4's IPv6 counterpart.
func BuildSrcFilterV6(nets filter.IPNet6s) (*lpm.LPM, error) {
	l, err := lpm.New(16)
	if err != nil {
		return nil, fmt.Errorf("balancer: build ipv6 src filter: %w", err)
	}
	for i, n := range nets {
		start := n.Addr.As16()
		mask := n.Mask.As16()
		var end [16]byte
		for b := range start {
			start[b] &= mask[b]
			end[b] = start[b] | ^mask[b]
		}
		if err := l.Insert(start[:], end[:], uint32(i)); err != nil {
			return nil, fmt.Errorf("balancer: insert ipv6 src filter entry %d: %w", i, err)
		}
	}
	return l, nil
}
