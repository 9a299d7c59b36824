package config

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateModulesReplacesAndAppends(t *testing.T) {
	c := New(2)
	c.ObserveGen(0, 0)
	c.ObserveGen(1, 0)

	gen1, err := c.UpdateModules([]Module{
		{DPModuleIndex: 1, Name: "acl", Data: "v1"},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen1.Gen)
	c.ObserveGen(0, 1)
	c.ObserveGen(1, 1)

	gen2, err := c.UpdateModules([]Module{
		{DPModuleIndex: 1, Name: "acl", Data: "v2"},
		{DPModuleIndex: 2, Name: "nat64", Data: "v1"},
	})
	require.NoError(t, err)
	c.ObserveGen(0, gen2.Gen)
	c.ObserveGen(1, gen2.Gen)

	m, ok := gen2.Modules.Lookup(1, "acl")
	require.True(t, ok)
	assert.Equal(t, "v2", m.Data)

	m, ok = gen2.Modules.Lookup(2, "nat64")
	require.True(t, ok)
	assert.Equal(t, "v1", m.Data)

	assert.Len(t, gen2.Modules.All(), 2)
}

func TestUpdatePipelinesRejectsUnknownModule(t *testing.T) {
	c := New(1)
	c.ObserveGen(0, 0)

	_, err := c.UpdatePipelines([]Pipeline{
		{Name: "p1", Modules: []ModuleRef{{DPModuleIndex: 1, Name: "acl"}}},
	})
	require.Error(t, err)

	// The live generation is untouched by the failed update.
	assert.Equal(t, uint64(0), c.Current().Gen)
}

func TestUpdatePipelinesPublishesValidReferences(t *testing.T) {
	c := New(1)
	c.ObserveGen(0, 0)

	_, err := c.UpdateModules([]Module{{DPModuleIndex: 1, Name: "acl"}})
	require.NoError(t, err)
	c.ObserveGen(0, 1)

	gen, err := c.UpdatePipelines([]Pipeline{
		{Name: "p1", Modules: []ModuleRef{{DPModuleIndex: 1, Name: "acl"}}},
	})
	require.NoError(t, err)
	c.ObserveGen(0, gen.Gen)

	p, ok := gen.Pipelines.Lookup("p1")
	require.True(t, ok)
	assert.Len(t, p.Modules, 1)
}

func TestUpdateDevicesRejectsUnknownPipeline(t *testing.T) {
	c := New(1)
	c.ObserveGen(0, 0)

	_, err := c.UpdateDevices([]DeviceBinding{{Device: "eth0", VLAN: 0, Pipeline: "missing"}})
	require.Error(t, err)
	assert.Equal(t, uint64(0), c.Current().Gen)
}

func TestUpdateDevicesPublishesWithKnownPipeline(t *testing.T) {
	c := New(1)
	c.ObserveGen(0, 0)

	_, err := c.UpdateModules([]Module{{DPModuleIndex: 1, Name: "acl"}})
	require.NoError(t, err)
	c.ObserveGen(0, 1)

	genP, err := c.UpdatePipelines([]Pipeline{{Name: "p1", Modules: []ModuleRef{{DPModuleIndex: 1, Name: "acl"}}}})
	require.NoError(t, err)
	c.ObserveGen(0, genP.Gen)

	genD, err := c.UpdateDevices([]DeviceBinding{{Device: "eth0", VLAN: 100, Pipeline: "p1"}})
	require.NoError(t, err)
	c.ObserveGen(0, genD.Gen)

	name, ok := genD.Devices.Lookup("eth0", 100)
	require.True(t, ok)
	assert.Equal(t, "p1", name)

	_, ok = genD.Devices.Lookup("eth0", 1)
	assert.False(t, ok)
}

func TestPublishWaitsForAllWorkers(t *testing.T) {
	c := New(2)
	c.ObserveGen(0, 0)
	c.ObserveGen(1, 0)
	c.ObserveGen(0, 1) // worker 0 already caught up

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Worker 1 is slow to observe; publish must still block until
		// it does.
		c.ObserveGen(1, 1)
	}()

	gen, err := c.UpdateModules([]Module{{DPModuleIndex: 1, Name: "acl"}})
	require.NoError(t, err)
	wg.Wait()
	assert.Equal(t, uint64(1), gen.Gen)
}
