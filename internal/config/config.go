// Package config implements the configuration generation chain (spec
// §3/§4.4, C9): copy-on-write module, pipeline and device registries
// published as atomic snapshots that workers observe without locking, and
// reclaimed only after every worker has witnessed the publication.
//
// The generation graph here is built from ordinary Go values rather than
// internal/shm-resident ones: the registries are owned exclusively by the
// control-plane process that calls Publish, and Go's garbage collector
// already reclaims an old generation once it is unlinked and no worker
// still holds a reference to it — there is no analog of the C allocator's
// manual bfree to perform once a generation is unreachable. The pieces
// that do need to survive a process restart or be visible to a second
// process (the shared arena, relative pointers) live in internal/shm and
// internal/relptr; this package is the coordination layer above them.
package config

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sakateka/yanet2-sub001/internal/counters"
)

// Module is one entry in a module registry: a name-addressed piece of
// configuration owned by the publishing agent, plus the counter registry
// it reports through.
type Module struct {
	DPModuleIndex uint64
	Name          string
	AgentID       string
	Data          any
	Counters      *counters.Registry
}

func (m Module) key() string { return fmt.Sprintf("%d/%s", m.DPModuleIndex, m.Name) }

// ModuleRegistry is an ordered, name+type-keyed array of modules.
type ModuleRegistry struct {
	modules []Module
	byKey   map[string]int
}

func newModuleRegistry(modules []Module) *ModuleRegistry {
	r := &ModuleRegistry{modules: modules, byKey: make(map[string]int, len(modules))}
	for i, m := range modules {
		r.byKey[m.key()] = i
	}
	return r
}

// Lookup returns a module by (dpModuleIndex, name).
func (r *ModuleRegistry) Lookup(dpModuleIndex uint64, name string) (Module, bool) {
	i, ok := r.byKey[Module{DPModuleIndex: dpModuleIndex, Name: name}.key()]
	if !ok {
		return Module{}, false
	}
	return r.modules[i], true
}

// All returns every module in the registry.
func (r *ModuleRegistry) All() []Module { return r.modules }

// Pipeline is an ordered sequence of module references.
type Pipeline struct {
	Name    string
	Modules []ModuleRef
}

// ModuleRef identifies one module within a pipeline, by the same key a
// ModuleRegistry uses.
type ModuleRef struct {
	DPModuleIndex uint64
	Name          string
}

// PipelineRegistry is a name-keyed array of pipelines.
type PipelineRegistry struct {
	pipelines []Pipeline
	byName    map[string]int
}

func newPipelineRegistry(pipelines []Pipeline) *PipelineRegistry {
	r := &PipelineRegistry{pipelines: pipelines, byName: make(map[string]int, len(pipelines))}
	for i, p := range pipelines {
		r.byName[p.Name] = i
	}
	return r
}

// Lookup returns a pipeline by name.
func (r *PipelineRegistry) Lookup(name string) (Pipeline, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Pipeline{}, false
	}
	return r.pipelines[i], true
}

// Names returns every pipeline name, for glob-filtered listing.
func (r *PipelineRegistry) Names() []string {
	names := make([]string, 0, len(r.pipelines))
	for _, p := range r.pipelines {
		names = append(names, p.Name)
	}
	return names
}

// DeviceBinding maps one (device, VLAN) pair to a pipeline name. VLAN 0
// means untagged.
type DeviceBinding struct {
	Device   string
	VLAN     uint16
	Pipeline string
}

// DeviceRegistry indexes physical port + VLAN to a pipeline name.
type DeviceRegistry struct {
	bindings map[string]map[uint16]string
}

func newDeviceRegistry(bindings []DeviceBinding) *DeviceRegistry {
	r := &DeviceRegistry{bindings: make(map[string]map[uint16]string)}
	for _, b := range bindings {
		if r.bindings[b.Device] == nil {
			r.bindings[b.Device] = make(map[uint16]string)
		}
		r.bindings[b.Device][b.VLAN] = b.Pipeline
	}
	return r
}

// Lookup returns the pipeline name bound to (device, vlan).
func (r *DeviceRegistry) Lookup(device string, vlan uint16) (string, bool) {
	vlans, ok := r.bindings[device]
	if !ok {
		return "", false
	}
	name, ok := vlans[vlan]
	return name, ok
}

// Devices returns every device name with at least one binding, for
// glob-filtered listing.
func (r *DeviceRegistry) Devices() []string {
	names := make([]string, 0, len(r.bindings))
	for d := range r.bindings {
		names = append(names, d)
	}
	return names
}

// Generation is one immutable, atomically published configuration
// snapshot (spec §3 "Configuration generation").
type Generation struct {
	Gen       uint64
	Prev      *Generation
	Modules   *ModuleRegistry
	Pipelines *PipelineRegistry
	Devices   *DeviceRegistry
}

// Config is the single-writer root a dataplane instance publishes
// generations through. Workers read Current(); the agent calls
// UpdateModules/UpdatePipelines/UpdateDevices.
type Config struct {
	mu      sync.Mutex // single writer per dataplane instance (spec §4.4 step 1)
	current atomic.Pointer[Generation]
	workers []atomic.Uint64
	// quiescePoll is the interval WaitForGen spins at; overridable in
	// tests so they don't depend on wall-clock tuning.
	quiescePoll time.Duration
}

// New constructs a Config for numWorkers workers, starting from an empty
// generation 0.
func New(numWorkers int) *Config {
	c := &Config{
		workers:     make([]atomic.Uint64, numWorkers),
		quiescePoll: time.Microsecond,
	}
	c.current.Store(&Generation{
		Gen:       0,
		Modules:   newModuleRegistry(nil),
		Pipelines: newPipelineRegistry(nil),
		Devices:   newDeviceRegistry(nil),
	})
	return c
}

// Current returns the currently published generation. Safe for concurrent
// use by any number of workers without locking.
func (c *Config) Current() *Generation {
	return c.current.Load()
}

// ObserveGen is called by a worker at the head of every iteration (spec
// §4.4 step 6: "a per-worker gen field the worker updates").
func (c *Config) ObserveGen(worker int, gen uint64) {
	c.workers[worker].Store(gen)
}

// WaitForGen blocks until every worker has observed gen or later.
func (c *Config) WaitForGen(gen uint64) {
	for i := range c.workers {
		for c.workers[i].Load() < gen {
			time.Sleep(c.quiescePoll)
		}
	}
}

// UpdateModules publishes a new generation where modules matching an
// existing (dpModuleIndex, name) are replaced in place and the rest are
// appended; pipeline and device registries carry over unchanged (spec
// §4.4).
func (c *Config) UpdateModules(newModules []Module) (*Generation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.current.Load()
	merged := make([]Module, len(old.Modules.modules))
	copy(merged, old.Modules.modules)
	index := make(map[string]int, len(merged))
	for i, m := range merged {
		index[m.key()] = i
	}
	for _, m := range newModules {
		if i, exists := index[m.key()]; exists {
			merged[i] = m
		} else {
			index[m.key()] = len(merged)
			merged = append(merged, m)
		}
	}

	next := &Generation{
		Gen:       old.Gen + 1,
		Prev:      old,
		Modules:   newModuleRegistry(merged),
		Pipelines: old.Pipelines,
		Devices:   old.Devices,
	}
	c.publish(next)
	return next, nil
}

// UpdatePipelines publishes a new generation with a replaced pipeline
// registry, validating every module reference against the current module
// registry before publication (module registry carries over unchanged).
// A reference to an unknown module fails the whole update and leaves the
// live generation untouched: the partially built pipeline list is simply
// never reached by c.publish, so nothing needs explicit freeing the way
// the ported C version does on its error paths.
func (c *Config) UpdatePipelines(pipelines []Pipeline) (*Generation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.current.Load()
	for _, p := range pipelines {
		for _, ref := range p.Modules {
			if _, ok := old.Modules.Lookup(ref.DPModuleIndex, ref.Name); !ok {
				return nil, fmt.Errorf("config: pipeline %q references unknown module %d/%q", p.Name, ref.DPModuleIndex, ref.Name)
			}
		}
	}

	next := &Generation{
		Gen:       old.Gen + 1,
		Prev:      old,
		Modules:   old.Modules,
		Pipelines: newPipelineRegistry(pipelines),
		Devices:   old.Devices,
	}
	c.publish(next)
	return next, nil
}

// UpdateDevices publishes a new generation with a replaced device
// registry, validating that every referenced pipeline name exists in the
// current pipeline registry before publication (spec §9 REDESIGN FLAG 2:
// the ported C `cp_config_update_devices` skips this check).
func (c *Config) UpdateDevices(bindings []DeviceBinding) (*Generation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.current.Load()
	for _, b := range bindings {
		if _, ok := old.Pipelines.Lookup(b.Pipeline); !ok {
			return nil, fmt.Errorf("config: device %q vlan %d references unknown pipeline %q", b.Device, b.VLAN, b.Pipeline)
		}
	}

	next := &Generation{
		Gen:       old.Gen + 1,
		Prev:      old,
		Modules:   old.Modules,
		Pipelines: old.Pipelines,
		Devices:   newDeviceRegistry(bindings),
	}
	c.publish(next)
	return next, nil
}

// publish stores next with release ordering (spec §4.4 step 5) and blocks
// until every worker has witnessed it (step 6), then clears next.Prev
// (step 7), dropping the new generation's link to the previous one so
// the previous one becomes unreachable once no worker's local view still
// points at it.
func (c *Config) publish(next *Generation) {
	c.current.Store(next)
	c.WaitForGen(next.Gen)
	next.Prev = nil
}
