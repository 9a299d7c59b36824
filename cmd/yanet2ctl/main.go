// Command yanet2ctl is the operator CLI for a dataplane instance's
// control-plane RPC surface (internal/rpc): it publishes module,
// pipeline and device generations, lists the pipelines a running
// generation knows about, and reports the current generation number.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/sakateka/yanet2-sub001/internal/rpc"
)

var rootArgs struct {
	Addr    string
	Timeout time.Duration
}

var rootCmd = &cobra.Command{
	Use:   "yanet2ctl",
	Short: "Control-plane client for a yanet2 dataplane instance",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootArgs.Addr, "addr", "[::1]:0", "dataplane control-plane RPC address")
	rootCmd.PersistentFlags().DurationVar(&rootArgs.Timeout, "timeout", 10*time.Second, "RPC dial and call timeout")

	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(generationCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}

// dial builds a client for the dataplane instance's RPC endpoint. The
// backoff retry wraps grpc.NewClient, which does not connect until the
// first RPC, so it retries only client construction errors (such as an
// unparsable target); an endpoint that is not listening yet surfaces as
// an error from the first call.
func dial(ctx context.Context) (rpc.ControlServiceClient, func(), error) {
	conn, err := backoff.Retry(ctx, func() (*grpc.ClientConn, error) {
		conn, err := grpc.NewClient(rootArgs.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", rootArgs.Addr, err)
		}
		return conn, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))
	if err != nil {
		return nil, nil, err
	}
	return rpc.NewControlServiceClient(conn), func() { conn.Close() }, nil
}
