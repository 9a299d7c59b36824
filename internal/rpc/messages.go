package rpc

import (
	"google.golang.org/protobuf/types/known/durationpb"
)

// ModuleData is the wire form of one config.Module. Config is an opaque,
// module-specific JSON blob: the control plane doesn't need to parse it,
// only to hand it to the right dataplane module.
type ModuleData struct {
	DPModuleIndex uint64 `json:"dp_module_index"`
	Name          string `json:"name"`
	AgentID       string `json:"agent_id"`
	ConfigJSON    string `json:"config_json"`
}

// PipelineRef is the wire form of one config.ModuleRef.
type PipelineRef struct {
	DPModuleIndex uint64 `json:"dp_module_index"`
	Name          string `json:"name"`
}

// PipelineData is the wire form of one config.Pipeline.
type PipelineData struct {
	Name    string        `json:"name"`
	Modules []PipelineRef `json:"modules"`
}

// DeviceBindingData is the wire form of one config.DeviceBinding.
type DeviceBindingData struct {
	Device   string `json:"device"`
	VLAN     uint16 `json:"vlan"`
	Pipeline string `json:"pipeline"`
}

// SessionTimeouts mirrors the balancer module's per-TCP-state session
// timeout configuration over the wire, reusing durationpb.Duration for
// the duration fields exactly as ModuleStateConfig.SessionTableScanPeriod
// does: no new duration wire type, just the pre-generated one.
type SessionTimeouts struct {
	TCPSynAck *durationpb.Duration `json:"tcp_syn_ack"`
	TCPSyn    *durationpb.Duration `json:"tcp_syn"`
	TCPFin    *durationpb.Duration `json:"tcp_fin"`
	TCP       *durationpb.Duration `json:"tcp"`
	UDP       *durationpb.Duration `json:"udp"`
	Default   *durationpb.Duration `json:"default"`
}

func seconds(d *durationpb.Duration) uint32 {
	if d == nil {
		return 0
	}
	return uint32(d.AsDuration().Seconds())
}

// PublishRequest asks a dataplane instance's agent to publish a new
// configuration generation built from modules, pipelines and devices, in
// that dependency order (spec §4.4).
type PublishRequest struct {
	AgentID   string              `json:"agent_id"`
	Modules   []ModuleData        `json:"modules"`
	Pipelines []PipelineData      `json:"pipelines"`
	Devices   []DeviceBindingData `json:"devices"`
}

// PublishResponse reports the generation number the publish landed on.
type PublishResponse struct {
	Gen uint64 `json:"gen"`
}

// ListPipelinesRequest lists the live pipeline registry's names, glob
// filtered when Glob is non-empty (spec §8 "yanet2ctl pipeline ls").
type ListPipelinesRequest struct {
	Glob string `json:"glob"`
}

// ListPipelinesResponse is the (possibly filtered) set of pipeline names.
type ListPipelinesResponse struct {
	Names []string `json:"names"`
}

// GetGenerationRequest has no fields; it asks for the live generation
// number.
type GetGenerationRequest struct{}

// GetGenerationResponse reports the currently published generation.
type GetGenerationResponse struct {
	Gen uint64 `json:"gen"`
}
