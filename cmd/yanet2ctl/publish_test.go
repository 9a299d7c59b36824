package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadPublishDoc(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "publish.yaml")
	contents := `
modules:
  - dp_module_index: 1
    name: nat64-main
    agent_id: yanet2ctl
    config_json: '{}'
pipelines:
  - name: default
    modules:
      - dp_module_index: 1
        name: nat64-main
devices:
  - device: eth0
    vlan: 0
    pipeline: default
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	doc, err := loadPublishDoc(path)
	require.NoError(t, err)
	require.Len(t, doc.Modules, 1)
	require.Equal(t, "nat64-main", doc.Modules[0].Name)
	require.Len(t, doc.Pipelines, 1)
	require.Equal(t, "default", doc.Pipelines[0].Name)
	require.Len(t, doc.Devices, 1)
	require.Equal(t, "eth0", doc.Devices[0].Device)
}

func TestLoadPublishDocMissingFile(t *testing.T) {
	_, err := loadPublishDoc(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
