package rpc

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/sakateka/yanet2-sub001/internal/agent"
	"github.com/sakateka/yanet2-sub001/internal/config"
)

// startTestServer wires a ControlService over an in-memory bufconn
// listener and returns a client dialed against it.
func startTestServer(t *testing.T, cfg *config.Config) ControlServiceClient {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	server := grpc.NewServer()
	a := agent.New("test-agent", cfg, zap.NewNop().Sugar())
	RegisterControlServiceServer(server, NewControlService(a, cfg))

	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewControlServiceClient(conn)
}

// runFakeWorker keeps a single worker's observed generation in lockstep
// with whatever config.Config just published, so Publish's blocking
// quiescence wait resolves immediately in tests.
func runFakeWorker(cfg *config.Config, stop <-chan struct{}) *sync.WaitGroup {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				cfg.ObserveGen(0, cfg.Current().Gen)
				time.Sleep(time.Microsecond)
			}
		}
	}()
	return &wg
}

func TestControlServicePublishListAndGetGeneration(t *testing.T) {
	cfg := config.New(1)
	stop := make(chan struct{})
	wg := runFakeWorker(cfg, stop)
	defer func() { close(stop); wg.Wait() }()

	client := startTestServer(t, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.Publish(ctx, &PublishRequest{
		AgentID: "test-agent",
		Modules: []ModuleData{{DPModuleIndex: 1, Name: "acl"}},
		Pipelines: []PipelineData{
			{Name: "p1", Modules: []PipelineRef{{DPModuleIndex: 1, Name: "acl"}}},
		},
		Devices: []DeviceBindingData{{Device: "eth0", Pipeline: "p1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), resp.Gen)

	list, err := client.ListPipelines(ctx, &ListPipelinesRequest{Glob: "p*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, list.Names)

	unmatched, err := client.ListPipelines(ctx, &ListPipelinesRequest{Glob: "lb-*"})
	require.NoError(t, err)
	assert.Empty(t, unmatched.Names)

	gen, err := client.GetGeneration(ctx, &GetGenerationRequest{})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), gen.Gen)
}

func TestControlServicePublishRejectsUnknownModuleReference(t *testing.T) {
	cfg := config.New(1)
	stop := make(chan struct{})
	wg := runFakeWorker(cfg, stop)
	defer func() { close(stop); wg.Wait() }()

	client := startTestServer(t, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := client.Publish(ctx, &PublishRequest{
		Pipelines: []PipelineData{
			{Name: "p1", Modules: []PipelineRef{{DPModuleIndex: 9, Name: "missing"}}},
		},
	})
	assert.Error(t, err)
}
