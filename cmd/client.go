package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ossim/ossim/sim/transport"
	"github.com/ossim/ossim/sim/wire"
)

var (
	// CLI flags for the test client
	clientSocket  string        // Socket to connect to
	clientPID     int32         // pid carried in every request
	clientRepeat  int           // Request cycles on one connection
	clientTimeout time.Duration // Bound on the whole session (0 = none)
)

// clientCmd acts as one application: it sends RUN or BLOCK requests and prints
// the ACK and DONE it gets back.
var clientCmd = &cobra.Command{
	Use:   "client <RUN|BLOCK> <time_ms>",
	Short: "Send RUN or BLOCK requests to a running scheduler",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, timeMs, err := parseClientArgs(args)
		if err != nil {
			return err
		}
		if clientRepeat <= 0 {
			return fmt.Errorf("--repeat must be > 0, got %d", clientRepeat)
		}
		cmd.SilenceUsage = true

		ctx := cmd.Context()
		if clientTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, clientTimeout)
			defer cancel()
		}
		return runClient(ctx, cmd.OutOrStdout(), clientSocket, req, clientPID, timeMs, clientRepeat)
	},
}

func parseClientArgs(args []string) (wire.Request, uint32, error) {
	req, err := wire.ParseRequest(args[0])
	if err != nil {
		return 0, 0, err
	}
	if req != wire.RequestRun && req != wire.RequestBlock {
		return 0, 0, fmt.Errorf("request must be RUN or BLOCK, got %s", req)
	}
	ms, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time_ms %q: %w", args[1], err)
	}
	return req, uint32(ms), nil
}

// runClient performs repeat request cycles on a single connection.
func runClient(ctx context.Context, out io.Writer, socket string, req wire.Request, pid int32, timeMs uint32, repeat int) error {
	c, err := transport.Dial(ctx, socket)
	if err != nil {
		return err
	}
	defer c.Close()

	for i := 0; i < repeat; i++ {
		fmt.Fprintf(out, "Sending %s: pid=%d, time_ms=%d\n", req, pid, timeMs)
		ack, done, err := c.Do(ctx, req, pid, timeMs)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "ACK received: pid=%d, time=%d\n", ack.PID, ack.TimeMs)
		fmt.Fprintf(out, "DONE received: pid=%d, time=%d\n", done.PID, done.TimeMs)
	}
	return nil
}

func init() {
	clientCmd.Flags().StringVar(&clientSocket, "socket", transport.DefaultSocketPath, "Scheduler socket path")
	clientCmd.Flags().Int32Var(&clientPID, "pid", int32(os.Getpid()), "pid sent with each request")
	clientCmd.Flags().IntVar(&clientRepeat, "repeat", 1, "Number of request cycles on the same connection")
	clientCmd.Flags().DurationVar(&clientTimeout, "timeout", 0, "Give up after this long (0 waits forever)")
}
