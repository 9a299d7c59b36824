package main

import (
	"context"
	"sync"

	"github.com/sakateka/yanet2-sub001/internal/xpacket2"
)

// loopbackSource is the worker.PacketSource this binary runs with in
// place of a real kernel-bypass NIC queue (spec §1 Non-goals: no NIC
// I/O). Packets fed to it via Inject are what Poll hands out; Transmit
// feeds its output straight back in, turning the whole dataplane
// instance into a closed loop useful for local exercising rather than a
// network.
type loopbackSource struct {
	mu     sync.Mutex
	queued []*xpacket2.Packet
}

func newLoopbackSource() *loopbackSource {
	return &loopbackSource{}
}

// Inject enqueues packets as if they had just arrived off the wire.
func (s *loopbackSource) Inject(packets ...*xpacket2.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued = append(s.queued, packets...)
}

func (s *loopbackSource) Poll(_ context.Context, batch int) ([]*xpacket2.Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queued) == 0 {
		return nil, nil
	}
	if batch > len(s.queued) {
		batch = len(s.queued)
	}
	out := s.queued[:batch]
	s.queued = s.queued[batch:]
	return out, nil
}

func (s *loopbackSource) Transmit(_ context.Context, packets []*xpacket2.Packet) error {
	s.Inject(packets...)
	return nil
}

func (s *loopbackSource) Discard(packets []*xpacket2.Packet) {}
