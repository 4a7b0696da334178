package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gifnksm/rsrs/internal/core"
	"github.com/gifnksm/rsrs/internal/daemon"
)

// NewVersionCommand prints the client's build version and, if a named
// daemon is reachable and running, its version too.
func NewVersionCommand() *cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version [node-name]",
		Short: "Show version",
		Long:  `Show the version of this binary and, optionally, a running daemon`,
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			clientVersion := core.Version
			fmt.Fprintf(os.Stderr, "Client version: %s\n", core.FormatVersion(clientVersion))

			if len(args) == 0 {
				return
			}
			nodeName := args[0]

			sockPath, err := core.GetControlSocketPath(nodeName)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return
			}

			resp, err := daemon.SendControlCommand(sockPath, "VERSION")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Daemon %q: not running\n", nodeName)
				return
			}

			if resp.Data == nil {
				return
			}
			jsonBytes, _ := json.Marshal(resp.Data)
			var versionData map[string]string
			if json.Unmarshal(jsonBytes, &versionData) != nil {
				return
			}
			daemonVersion := versionData["version"]
			fmt.Fprintf(os.Stderr, "Daemon version: %s\n", core.FormatVersion(daemonVersion))

			if clientVersion != daemonVersion {
				slog.Warn(fmt.Sprintf("version mismatch: client %s, daemon %s", clientVersion, daemonVersion))
			}
		},
	}

	return versionCmd
}
