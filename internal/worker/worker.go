// Package worker implements the per-instance pool of polling workers and
// the pipeline dispatch loop (spec §3/§4, C14): each worker reads its
// local view of the current configuration generation, pulls a batch of
// packets from its bound device, routes them through the pipeline the
// generation prescribes, and hands output packets back to the device.
//
// NIC queue access is abstracted behind PacketSource rather than wired to
// a real kernel-bypass driver (spec §1 Non-goals: no NIC I/O); cmd/dataplane
// supplies a real implementation, tests supply an in-memory one.
package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sakateka/yanet2-sub001/internal/config"
	"github.com/sakateka/yanet2-sub001/internal/xpacket2"
)

// PacketSource is the injected NIC-queue abstraction a worker polls for
// input and drains output/drop into.
type PacketSource interface {
	// Poll returns up to batch freshly received packets tagged with
	// their ingress device name, or an error. It must return promptly
	// (possibly with zero packets) so the worker can re-check its
	// context and configuration generation.
	Poll(ctx context.Context, batch int) ([]*xpacket2.Packet, error)
	// Transmit hands finished packets (verdict Output) to their egress
	// device.
	Transmit(ctx context.Context, packets []*xpacket2.Packet) error
	// Discard hands dropped packets back to the source for accounting
	// and release.
	Discard(packets []*xpacket2.Packet)
}

// ModuleHandler processes every packet currently in front.Input for one
// module, popping each and pushing it to Output, Drop or Pending. It must
// drain Input completely.
type ModuleHandler func(front *xpacket2.Front, m config.Module)

// HandlerRegistry maps a module's DPModuleIndex (its kind: parse, ACL,
// NAT64, balancer, fwstate sync, encap, ...) to the handler that
// processes it.
type HandlerRegistry map[uint64]ModuleHandler

// Worker runs the poll/dispatch/transmit loop for one device, reading
// configuration generations published by *config.Config.
type Worker struct {
	ID       int
	Device   string
	BatchSize int

	cfg      *config.Config
	source   PacketSource
	handlers HandlerRegistry
	log      *zap.SugaredLogger
}

// New constructs a Worker bound to device, reading generations from cfg
// and dispatching modules via handlers.
func New(id int, device string, batchSize int, cfg *config.Config, source PacketSource, handlers HandlerRegistry, log *zap.SugaredLogger) *Worker {
	return &Worker{
		ID:        id,
		Device:    device,
		BatchSize: batchSize,
		cfg:       cfg,
		source:    source,
		handlers:  handlers,
		log:       log.With("worker", id, "device", device),
	}
}

// RunOnce executes a single poll/dispatch/transmit iteration. It always
// begins by publishing this worker's observed generation (spec §4.4 step
// 6: "a per-worker gen field the worker updates at the head of every
// iteration"), ahead of even reading from the source, so a concurrent
// Config.WaitForGen cannot stall behind a worker blocked in Poll.
func (w *Worker) RunOnce(ctx context.Context) error {
	gen := w.cfg.Current()
	w.cfg.ObserveGen(w.ID, gen.Gen)

	packets, err := w.source.Poll(ctx, w.BatchSize)
	if err != nil {
		return fmt.Errorf("worker %d: poll: %w", w.ID, err)
	}
	if len(packets) == 0 {
		return nil
	}

	fronts := w.groupByPipeline(gen, packets)

	var output, drop []*xpacket2.Packet
	for name, front := range fronts {
		pipeline, ok := gen.Pipelines.Lookup(name)
		if !ok {
			// The device registry and pipeline registry are always
			// published together (spec §4.4 UpdateDevices validates
			// this), so this only happens if a generation swap raced
			// under us; treat it as a drop rather than panicking.
			for p := front.PopInput(); p != nil; p = front.PopInput() {
				drop = append(drop, p)
			}
			continue
		}
		w.runPipeline(gen, pipeline, front)
		// runPipeline's final Advance leaves the packets that passed
		// every module in front.Input.
		for p := front.Input; p != nil; p = p.Next {
			output = append(output, p)
		}
		for p := front.Drop; p != nil; p = p.Next {
			drop = append(drop, p)
		}
	}

	if len(drop) > 0 {
		w.source.Discard(drop)
	}
	if len(output) > 0 {
		if err := w.source.Transmit(ctx, output); err != nil {
			return fmt.Errorf("worker %d: transmit: %w", w.ID, err)
		}
	}
	return nil
}

// groupByPipeline partitions packets into one Front per pipeline name
// their (device, VLAN) resolves to, dropping packets with no binding.
func (w *Worker) groupByPipeline(gen *config.Generation, packets []*xpacket2.Packet) map[string]*xpacket2.Front {
	fronts := make(map[string]*xpacket2.Front)
	var unbound []*xpacket2.Packet
	for _, p := range packets {
		name, ok := gen.Devices.Lookup(p.InputDevice, p.VLAN)
		if !ok {
			unbound = append(unbound, p)
			continue
		}
		f := fronts[name]
		if f == nil {
			f = &xpacket2.Front{}
			fronts[name] = f
		}
		f.PushInput(p)
	}
	if len(unbound) > 0 {
		w.source.Discard(unbound)
	}
	return fronts
}

// runPipeline drains front.Input through every module in order,
// concatenating each module's output into the next module's input (spec
// §3 "packet front"). Packets a module pushes to Drop or Pending leave
// the chain immediately and are not seen by later modules. Each
// handler receives the module's full registered entry (including Data)
// rather than just its pipeline reference, so it can read its own
// configuration.
func (w *Worker) runPipeline(gen *config.Generation, pipeline config.Pipeline, front *xpacket2.Front) {
	for _, ref := range pipeline.Modules {
		handler, ok := w.handlers[ref.DPModuleIndex]
		if !ok {
			w.log.Warnw("no handler registered for module", "dp_module_index", ref.DPModuleIndex, "name", ref.Name)
			continue
		}
		module, ok := gen.Modules.Lookup(ref.DPModuleIndex, ref.Name)
		if !ok {
			module = config.Module{DPModuleIndex: ref.DPModuleIndex, Name: ref.Name}
		}
		handler(front, module)
		front.Advance()
	}
}

// Pool runs a fixed set of workers concurrently, supervised by an
// errgroup so the first fatal worker error cancels the rest (spec §3
// "a cluster of polling workers").
type Pool struct {
	workers []*Worker
}

// NewPool constructs a Pool over workers.
func NewPool(workers []*Worker) *Pool {
	return &Pool{workers: workers}
}

// Run polls every worker in a tight loop until ctx is canceled or a
// worker returns an error.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		w := w
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				if err := w.RunOnce(ctx); err != nil {
					return err
				}
			}
		})
	}
	return g.Wait()
}
