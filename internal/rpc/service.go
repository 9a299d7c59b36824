// Package rpc implements the control-plane's gRPC surface (spec §4.4,
// §8 "operational surface") without a protoc code-generation step:
// request/response messages are plain Go structs exchanged through a
// hand-registered JSON encoding.Codec (codec.go), and the service is
// wired up with a hand-built grpc.ServiceDesc (control_service.go)
// instead of a generated *_grpc.pb.go file. It is grounded on the
// teacher's modules/nat64/controlplane (a gRPC service wrapping an
// agent) and modules/balancer/agent's use of durationpb.Duration for
// timeout-shaped config fields.
package rpc

import (
	"context"

	"github.com/gobwas/glob"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sakateka/yanet2-sub001/internal/agent"
	"github.com/sakateka/yanet2-sub001/internal/config"
)

// ControlServiceServer is the control-plane RPC surface a dataplane
// instance's agent exposes: publish a new configuration generation,
// inspect the live pipeline registry, and read back the current
// generation number.
type ControlServiceServer interface {
	Publish(ctx context.Context, req *PublishRequest) (*PublishResponse, error)
	ListPipelines(ctx context.Context, req *ListPipelinesRequest) (*ListPipelinesResponse, error)
	GetGeneration(ctx context.Context, req *GetGenerationRequest) (*GetGenerationResponse, error)
}

// ControlService implements ControlServiceServer against one dataplane
// instance's agent and live configuration.
type ControlService struct {
	agent *agent.Agent
	cfg   *config.Config
}

// NewControlService binds an RPC surface to an agent and the Config it
// publishes against.
func NewControlService(a *agent.Agent, cfg *config.Config) *ControlService {
	return &ControlService{agent: a, cfg: cfg}
}

// Publish converts the wire request into an agent.DesiredState and
// publishes it.
func (s *ControlService) Publish(ctx context.Context, req *PublishRequest) (*PublishResponse, error) {
	state := agent.DesiredState{
		Modules:   make([]config.Module, len(req.Modules)),
		Pipelines: make([]config.Pipeline, len(req.Pipelines)),
		Devices:   make([]config.DeviceBinding, len(req.Devices)),
	}
	for i, m := range req.Modules {
		state.Modules[i] = config.Module{
			DPModuleIndex: m.DPModuleIndex,
			Name:          m.Name,
			AgentID:       m.AgentID,
			Data:          m.ConfigJSON,
		}
	}
	for i, p := range req.Pipelines {
		refs := make([]config.ModuleRef, len(p.Modules))
		for j, r := range p.Modules {
			refs[j] = config.ModuleRef{DPModuleIndex: r.DPModuleIndex, Name: r.Name}
		}
		state.Pipelines[i] = config.Pipeline{Name: p.Name, Modules: refs}
	}
	for i, d := range req.Devices {
		state.Devices[i] = config.DeviceBinding{Device: d.Device, VLAN: d.VLAN, Pipeline: d.Pipeline}
	}

	gen, err := s.agent.Publish(ctx, state)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "publish: %v", err)
	}
	return &PublishResponse{Gen: gen.Gen}, nil
}

// ListPipelines lists the live pipeline registry's names, glob filtered
// when req.Glob is non-empty.
func (s *ControlService) ListPipelines(ctx context.Context, req *ListPipelinesRequest) (*ListPipelinesResponse, error) {
	names := s.cfg.Current().Pipelines.Names()
	if req.Glob == "" {
		return &ListPipelinesResponse{Names: names}, nil
	}

	g, err := glob.Compile(req.Glob)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid glob %q: %v", req.Glob, err)
	}
	matched := make([]string, 0, len(names))
	for _, n := range names {
		if g.Match(n) {
			matched = append(matched, n)
		}
	}
	return &ListPipelinesResponse{Names: matched}, nil
}

// GetGeneration reports the currently published generation number.
func (s *ControlService) GetGeneration(ctx context.Context, req *GetGenerationRequest) (*GetGenerationResponse, error) {
	return &GetGenerationResponse{Gen: s.cfg.Current().Gen}, nil
}
