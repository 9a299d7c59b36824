package main

import (
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/sakateka/yanet2-sub001/common/go/logging"
)

// Config is the on-disk configuration for one dataplane instance: how
// many workers to run, the shared arena they're backed by, and the
// control-plane RPC endpoint it serves. Module/pipeline/device
// generations themselves arrive over that RPC endpoint rather than from
// this file (spec §4.4): a dataplane instance starts at generation 0 and
// does nothing until an agent publishes one.
type Config struct {
	ArenaSize   datasize.ByteSize `yaml:"arena_size"`
	Workers     int               `yaml:"workers"`
	BatchSize   int               `yaml:"batch_size"`
	RPCEndpoint string            `yaml:"rpc_endpoint"`
	Logging     logging.Config    `yaml:"logging"`
}

// DefaultConfig returns the configuration a dataplane instance starts
// with before a config file is applied on top of it.
func DefaultConfig() *Config {
	return &Config{
		ArenaSize:   64 * datasize.MB,
		Workers:     4,
		BatchSize:   64,
		RPCEndpoint: "[::1]:0",
		Logging:     logging.Config{Level: zapcore.InfoLevel},
	}
}

// LoadConfig reads a YAML configuration file, starting from
// DefaultConfig and overlaying whatever the file specifies.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataplane: read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("dataplane: parse config: %w", err)
	}
	return cfg, nil
}
