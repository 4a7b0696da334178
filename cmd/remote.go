package cmd

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gifnksm/rsrs/internal/core"
	"github.com/gifnksm/rsrs/internal/process"
	"github.com/gifnksm/rsrs/internal/router"
	"github.com/gifnksm/rsrs/internal/wire"
)

// NewRemoteCommand is the peer-side entrypoint invoked by ssh: it reads
// frames from its own stdin, writes frames to its own stdout, and feeds
// them into a Remote-kind router that spawns whatever the local side asks
// for.
func NewRemoteCommand() *cobra.Command {
	remoteCmd := &cobra.Command{
		Use:    "remote",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := wire.NewWriter(os.Stdout)
			r := wire.NewReader(os.Stdin)

			queueCap := router.DefaultQueueCapacity
			if core.Config != nil {
				queueCap = core.Config.QueueCapacity
			}

			var rtr *router.Router
			spawn := func(env map[string]string, req wire.SpawnRequest) error {
				return process.Spawn(rtr, env, req)
			}
			rtr = router.NewWithQueueCapacity(wire.Remote, w, spawn, queueCap)

			for {
				command, err := r.ReadCommand()
				if err != nil {
					if errors.Is(err, io.EOF) {
						return nil
					}
					return err
				}
				if command.Tag == wire.TagExit {
					_ = rtr.Send(wire.NewExit())
					return nil
				}
				rtr.HandleIncoming(command)
			}
		},
	}

	return remoteCmd
}
