package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gifnksm/rsrs/internal/core"
	"github.com/gifnksm/rsrs/internal/daemon"
)

// NewStatsCommand reports resource usage of a named daemon's own process,
// via the control socket. Processes spawned for its openers are not
// included.
func NewStatsCommand() *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats <node-name>",
		Short: "Show resource usage of a daemon process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeName := args[0]

			sockPath, err := core.GetControlSocketPath(nodeName)
			if err != nil {
				return err
			}

			resp, err := daemon.SendControlCommand(sockPath, "STATS")
			if err != nil {
				return fmt.Errorf("rsrs: daemon %q not reachable: %w", nodeName, err)
			}

			for _, m := range resp.Messages {
				fmt.Fprintln(os.Stderr, m.Message)
			}
			if resp.Data != nil {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(resp.Data)
			}
			return nil
		},
	}

	return statsCmd
}
