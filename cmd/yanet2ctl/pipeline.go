package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakateka/yanet2-sub001/internal/rpc"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Inspect pipelines known to the current generation",
}

var pipelineLsCmd = &cobra.Command{
	Use:   "ls [glob]",
	Short: "List pipeline names, optionally glob filtered",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cobraCmd *cobra.Command, args []string) {
		pattern := ""
		if len(args) == 1 {
			pattern = args[0]
		}
		if err := runPipelineLs(pattern); err != nil {
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	pipelineCmd.AddCommand(pipelineLsCmd)
}

func runPipelineLs(pattern string) error {
	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.Timeout)
	defer cancel()

	client, closeConn, err := dial(ctx)
	if err != nil {
		return err
	}
	defer closeConn()

	resp, err := client.ListPipelines(ctx, &rpc.ListPipelinesRequest{Glob: pattern})
	if err != nil {
		return fmt.Errorf("list pipelines: %w", err)
	}

	for _, name := range resp.Names {
		fmt.Println(name)
	}
	return nil
}
