// Command dataplane runs one dataplane instance: a fixed pool of
// worker-loop goroutines dispatching packets through the pipeline their
// current configuration generation prescribes (spec §3/§4, C14), plus
// the control-plane RPC surface an agent uses to publish new generations
// (spec §4.4). It mirrors modules/balancer/app/cmd/balancer/main.go's
// shape: build the module, listen, wait for a signal.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/sakateka/yanet2-sub001/common/go/logging"
	"github.com/sakateka/yanet2-sub001/common/go/xcmd"
	"github.com/sakateka/yanet2-sub001/internal/agent"
	"github.com/sakateka/yanet2-sub001/internal/config"
	"github.com/sakateka/yanet2-sub001/internal/memctx"
	"github.com/sakateka/yanet2-sub001/internal/rpc"
	"github.com/sakateka/yanet2-sub001/internal/shm"
	"github.com/sakateka/yanet2-sub001/internal/worker"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: dataplane <config.yaml>")
		os.Exit(1)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	log, _, err := logging.Init(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("dataplane: init logging: %w", err)
	}
	defer log.Sync()

	// The shared arena backs C1-C3's allocator; this instance's config
	// generations themselves are plain Go values (internal/config's
	// package doc explains why), but the arena is still stood up here
	// since it's what a second, cooperating process would attach to.
	region, err := shm.NewAnonRegion(uint64(cfg.ArenaSize.Bytes()))
	if err != nil {
		return fmt.Errorf("dataplane: map shared arena: %w", err)
	}
	defer region.Close()
	arena := shm.NewArena(region)
	if err := arena.ArenaPut(0, region.Size()); err != nil {
		return fmt.Errorf("dataplane: donate arena extent: %w", err)
	}
	log.Infow("mapped shared arena", "size", cfg.ArenaSize, "outstanding", arena.Outstanding())

	// Each dataplane module gets its own named context over the shared
	// arena so a leak (outstanding != 0 at shutdown) is attributed to
	// the module that caused it rather than lost in the arena's own
	// aggregate count.
	moduleCtxs := []*memctx.Context{
		memctx.New(arena, "nat64"),
		memctx.New(arena, "balancer"),
	}
	defer func() {
		for _, c := range moduleCtxs {
			if out := c.Outstanding(); out != 0 {
				log.Warnw("memory context leaked on shutdown", "context", c.Name(), "outstanding", out)
			}
		}
	}()

	cfgChain := config.New(cfg.Workers)
	dpAgent := agent.New("dataplane-local", cfgChain, log)

	source := newLoopbackSource()
	handlers := worker.HandlerRegistry{
		config.DPModuleNAT64:    nat64Handler,
		config.DPModuleBalancer: balancerHandler,
	}

	workers := make([]*worker.Worker, cfg.Workers)
	for i := range workers {
		workers[i] = worker.New(i, "loop0", cfg.BatchSize, cfgChain, source, handlers, log)
	}
	pool := worker.NewPool(workers)

	lis, err := net.Listen("tcp", cfg.RPCEndpoint)
	if err != nil {
		return fmt.Errorf("dataplane: listen: %w", err)
	}
	server := grpc.NewServer()
	rpc.RegisterControlServiceServer(server, rpc.NewControlService(dpAgent, cfgChain))
	healthpb.RegisterHealthServer(server, health.NewServer())
	reflection.Register(server)

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		log.Infow("control-plane RPC listening", "addr", lis.Addr())
		return server.Serve(lis)
	})
	g.Go(func() error {
		return pool.Run(ctx)
	})
	g.Go(func() error {
		err := xcmd.WaitInterrupted(ctx)
		log.Infow("shutting down", "reason", err)
		server.GracefulStop()
		return err
	})

	if err := g.Wait(); err != nil {
		var interrupted xcmd.Interrupted
		if errors.As(err, &interrupted) {
			return nil
		}
		return err
	}
	return nil
}
