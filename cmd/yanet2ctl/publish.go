package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sakateka/yanet2-sub001/internal/rpc"
)

// publishDoc is the on-disk shape of a `yanet2ctl publish` config file:
// a plain YAML rendering of rpc.PublishRequest's module/pipeline/device
// lists, submitted together so the dataplane's agent sees them in a
// single generation.
type publishDoc struct {
	Modules   []rpc.ModuleData        `yaml:"modules"`
	Pipelines []rpc.PipelineData      `yaml:"pipelines"`
	Devices   []rpc.DeviceBindingData `yaml:"devices"`
}

func loadPublishDoc(path string) (*publishDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publish file: %w", err)
	}
	var doc publishDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse publish file: %w", err)
	}
	return &doc, nil
}

var publishArgs struct {
	File    string
	AgentID string
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a module/pipeline/device configuration generation",
	Run: func(cobraCmd *cobra.Command, args []string) {
		if err := runPublish(); err != nil {
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	publishCmd.Flags().StringVarP(&publishArgs.File, "file", "f", "", "Path to the publish YAML file (required)")
	publishCmd.Flags().StringVar(&publishArgs.AgentID, "agent-id", "yanet2ctl", "agent identity attributed to this publish")
	publishCmd.MarkFlagRequired("file")
}

func runPublish() error {
	doc, err := loadPublishDoc(publishArgs.File)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.Timeout)
	defer cancel()

	client, closeConn, err := dial(ctx)
	if err != nil {
		return err
	}
	defer closeConn()

	req := &rpc.PublishRequest{
		AgentID:   publishArgs.AgentID,
		Modules:   doc.Modules,
		Pipelines: doc.Pipelines,
		Devices:   doc.Devices,
	}
	resp, err := client.Publish(ctx, req)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	fmt.Printf("published generation %d\n", resp.Gen)
	return nil
}
