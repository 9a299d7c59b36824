package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakateka/yanet2-sub001/internal/rpc"
)

var generationCmd = &cobra.Command{
	Use:   "generation",
	Short: "Print the currently published generation number",
	Run: func(cobraCmd *cobra.Command, args []string) {
		if err := runGeneration(); err != nil {
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	},
}

func runGeneration() error {
	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.Timeout)
	defer cancel()

	client, closeConn, err := dial(ctx)
	if err != nil {
		return err
	}
	defer closeConn()

	resp, err := client.GetGeneration(ctx, &rpc.GetGenerationRequest{})
	if err != nil {
		return fmt.Errorf("get generation: %w", err)
	}

	fmt.Println(resp.Gen)
	return nil
}
