package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gifnksm/rsrs/internal/audit"
	"github.com/gifnksm/rsrs/internal/core"
	"github.com/gifnksm/rsrs/internal/daemon"
	"github.com/gifnksm/rsrs/internal/namegen"
	"github.com/gifnksm/rsrs/internal/router"
)

// maxNameMintAttempts bounds how many minted names NewDaemonCommand will try
// against the socket directory before giving up, should one candidate after
// another already belong to a live daemon.
const maxNameMintAttempts = 20

// NewDaemonCommand starts a named persistent session host in the
// foreground; callers arrange backgrounding (ssh -f, nohup, etc.)
// themselves, matching the teacher's approach of staying out of process
// supervision. If no node name is given, one is minted and retried against
// the actual socket directory until an unused one is found.
func NewDaemonCommand() *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:    "daemon [node-name]",
		Hidden: true,
		Args:   cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var nodeName string
			if len(args) > 0 {
				nodeName = args[0]
			}

			var ln net.Listener
			if nodeName == "" {
				name, l, err := mintListener()
				if err != nil {
					return fmt.Errorf("rsrs: daemon: %w", err)
				}
				nodeName, ln = name, l
				fmt.Fprintln(os.Stderr, "rsrs: daemon node name:", nodeName)
			} else {
				sockPath, err := core.GetSocketPath(nodeName)
				if err != nil {
					return err
				}
				l, err := daemon.Listen(sockPath)
				if err != nil {
					return fmt.Errorf("rsrs: daemon: %w", err)
				}
				ln = l
			}

			ctlSockPath, err := core.GetControlSocketPath(nodeName)
			if err != nil {
				return err
			}
			ctlLn, err := daemon.Listen(ctlSockPath)
			if err != nil {
				return fmt.Errorf("rsrs: daemon control: %w", err)
			}

			auditPath, err := core.GetAuditDBPath(nodeName)
			if err != nil {
				return err
			}
			auditDB, err := audit.Open(auditPath)
			if err != nil {
				return fmt.Errorf("rsrs: daemon: %w", err)
			}
			defer auditDB.Close()

			queueCap := router.DefaultQueueCapacity
			if core.Config != nil {
				queueCap = core.Config.QueueCapacity
			}

			sockPath, err := core.GetSocketPath(nodeName)
			if err != nil {
				return err
			}
			d := daemon.New(nodeName, sockPath, queueCap, auditDB)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
			go func() {
				<-sigCh
				slog.Info("daemon: shutting down", "node", nodeName)
				d.Shutdown()
				ln.Close()
				ctlLn.Close()
			}()

			go func() {
				if err := d.ServeControlLoop(ctlLn); err != nil {
					slog.Debug("daemon: control listener stopped", "error", err)
				}
			}()

			if err := d.Serve(ln); err != nil {
				slog.Debug("daemon: handover listener stopped", "error", err)
			}
			return nil
		},
	}

	return daemonCmd
}

// mintListener picks a fresh adjective-noun node name and binds its handover
// socket, retrying against a newly minted name whenever the previous
// candidate's socket turns out to belong to a live daemon — Registry's own
// in-process collision tracking can't see daemons started by other
// processes, so the real arbiter of uniqueness is Listen's liveness probe.
func mintListener() (string, net.Listener, error) {
	reg := namegen.NewRegistry(namegen.New(namegen.DefaultAdjectives, namegen.DefaultNouns))

	for i := 0; i < maxNameMintAttempts; i++ {
		candidate, err := reg.Assign()
		if err != nil {
			return "", nil, fmt.Errorf("mint node name: %w", err)
		}

		sockPath, err := core.GetSocketPath(candidate)
		if err != nil {
			return "", nil, err
		}

		ln, err := daemon.Listen(sockPath)
		if err == nil {
			return candidate, ln, nil
		}
		if !errors.Is(err, daemon.ErrAlreadyRunning) {
			return "", nil, err
		}
		reg.Release(candidate)
	}
	return "", nil, fmt.Errorf("could not find an unused node name after %d attempts", maxNameMintAttempts)
}
