package worker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sakateka/yanet2-sub001/internal/config"
	"github.com/sakateka/yanet2-sub001/internal/xpacket2"
)

// fakeSource is a single-shot in-memory PacketSource: it yields queued
// once, then nothing, and records transmitted/discarded packets.
type fakeSource struct {
	mu        sync.Mutex
	queued    []*xpacket2.Packet
	polled    bool
	transmitted []*xpacket2.Packet
	discarded   []*xpacket2.Packet
}

func (s *fakeSource) Poll(_ context.Context, _ int) ([]*xpacket2.Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.polled {
		return nil, nil
	}
	s.polled = true
	return s.queued, nil
}

func (s *fakeSource) Transmit(_ context.Context, packets []*xpacket2.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transmitted = append(s.transmitted, packets...)
	return nil
}

func (s *fakeSource) Discard(packets []*xpacket2.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discarded = append(s.discarded, packets...)
}

func passthroughHandler(front *xpacket2.Front, _ config.Module) {
	for p := front.PopInput(); p != nil; p = front.PopInput() {
		front.PushOutput(p)
	}
}

func dropHandler(front *xpacket2.Front, _ config.Module) {
	for p := front.PopInput(); p != nil; p = front.PopInput() {
		front.PushDrop(p)
	}
}

func newTestLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestRunOnceRoutesThroughPipeline(t *testing.T) {
	cfg := config.New(1)
	cfg.ObserveGen(0, 0)

	_, err := cfg.UpdateModules([]config.Module{{DPModuleIndex: 1, Name: "acl"}})
	require.NoError(t, err)
	cfg.ObserveGen(0, 1)

	gen, err := cfg.UpdatePipelines([]config.Pipeline{
		{Name: "p1", Modules: []config.ModuleRef{{DPModuleIndex: 1, Name: "acl"}}},
	})
	require.NoError(t, err)
	cfg.ObserveGen(0, gen.Gen)

	gen, err = cfg.UpdateDevices([]config.DeviceBinding{{Device: "eth0", VLAN: 0, Pipeline: "p1"}})
	require.NoError(t, err)
	cfg.ObserveGen(0, gen.Gen)

	src := &fakeSource{queued: []*xpacket2.Packet{
		{InputDevice: "eth0"},
		{InputDevice: "eth0"},
	}}

	handlers := HandlerRegistry{1: passthroughHandler}
	w := New(0, "eth0", 32, cfg, src, handlers, newTestLogger())

	require.NoError(t, w.RunOnce(context.Background()))

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Len(t, src.transmitted, 2)
	assert.Empty(t, src.discarded)
}

func TestRunOnceDropsUnboundDevice(t *testing.T) {
	cfg := config.New(1)
	cfg.ObserveGen(0, 0)

	src := &fakeSource{queued: []*xpacket2.Packet{{InputDevice: "eth9"}}}
	w := New(0, "eth9", 32, cfg, src, HandlerRegistry{}, newTestLogger())

	require.NoError(t, w.RunOnce(context.Background()))

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Empty(t, src.transmitted)
	assert.Len(t, src.discarded, 1)
}

func TestRunOnceModuleDropsPacket(t *testing.T) {
	cfg := config.New(1)
	cfg.ObserveGen(0, 0)

	_, err := cfg.UpdateModules([]config.Module{{DPModuleIndex: 2, Name: "acl"}})
	require.NoError(t, err)
	cfg.ObserveGen(0, 1)

	gen, err := cfg.UpdatePipelines([]config.Pipeline{
		{Name: "p1", Modules: []config.ModuleRef{{DPModuleIndex: 2, Name: "acl"}}},
	})
	require.NoError(t, err)
	cfg.ObserveGen(0, gen.Gen)

	gen, err = cfg.UpdateDevices([]config.DeviceBinding{{Device: "eth0", VLAN: 0, Pipeline: "p1"}})
	require.NoError(t, err)
	cfg.ObserveGen(0, gen.Gen)

	src := &fakeSource{queued: []*xpacket2.Packet{{InputDevice: "eth0"}}}
	handlers := HandlerRegistry{2: dropHandler}
	w := New(0, "eth0", 32, cfg, src, handlers, newTestLogger())

	require.NoError(t, w.RunOnce(context.Background()))

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Empty(t, src.transmitted)
	assert.Len(t, src.discarded, 1)
}

func TestPoolRunStopsOnContextCancel(t *testing.T) {
	cfg := config.New(1)
	cfg.ObserveGen(0, 0)
	src := &fakeSource{}
	w := New(0, "eth0", 32, cfg, src, HandlerRegistry{}, newTestLogger())
	pool := NewPool([]*Worker{w})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pool.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
