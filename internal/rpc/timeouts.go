package rpc

import "github.com/sakateka/yanet2-sub001/internal/balancer"

// ToBalancerTimeouts converts the wire representation into the
// balancer package's second-granularity Timeouts, the form SelectReal
// actually consumes.
func (s *SessionTimeouts) ToBalancerTimeouts() balancer.Timeouts {
	if s == nil {
		return balancer.Timeouts{}
	}
	return balancer.Timeouts{
		TCPSynAck: seconds(s.TCPSynAck),
		TCPSyn:    seconds(s.TCPSyn),
		TCPFin:    seconds(s.TCPFin),
		TCP:       seconds(s.TCP),
		UDP:       seconds(s.UDP),
		Default:   seconds(s.Default),
	}
}
