package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gifnksm/rsrs/internal/core"
	"github.com/gifnksm/rsrs/internal/daemon"
)

// NewOpenCommand attaches the current stdio to a daemon session, starting
// the daemon first if nothing is listening on its socket, handing its fds
// over the daemon's unix socket via SCM_RIGHTS and blocking until the daemon
// signals a detach.
func NewOpenCommand() *cobra.Command {
	openCmd := &cobra.Command{
		Use:   "open <node-name>",
		Short: "Attach to a running daemon session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeName := args[0]

			sockPath, err := core.GetSocketPath(nodeName)
			if err != nil {
				return err
			}

			command := filepath.Base(os.Args[0])
			if err := daemon.Attach(nodeName, sockPath, command, os.Args[1:]); err != nil {
				return fmt.Errorf("rsrs: open %s: %w", nodeName, err)
			}
			return nil
		},
	}

	return openCmd
}
