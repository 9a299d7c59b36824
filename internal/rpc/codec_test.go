package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	c := jsonCodec{}
	assert.Equal(t, "json", c.Name())

	in := &PublishRequest{
		AgentID: "agent-1",
		Modules: []ModuleData{{DPModuleIndex: 1, Name: "acl"}},
	}
	b, err := c.Marshal(in)
	require.NoError(t, err)

	out := new(PublishRequest)
	require.NoError(t, c.Unmarshal(b, out))
	assert.Equal(t, in, out)
}
