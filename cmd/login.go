package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gifnksm/rsrs/internal/core"
	"github.com/gifnksm/rsrs/internal/session"
)

// NewLoginCommand drives a single interactive (or piped) session against a
// remote host: it launches ssh with the remote rsrs binary as the command,
// and pipes the wire protocol through its stdio.
func NewLoginCommand() *cobra.Command {
	var forceNoPty bool
	var forcePty bool
	var noSpawn bool
	var remoteBinary string
	var forwardEnv []string

	loginCmd := &cobra.Command{
		Use:   "login <host> [-- command [args...]]",
		Short: "Start or attach to a remote shell over ssh",
		Args:  cobra.MinimumNArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return sshHostCompletionFunc(cmd, args, toComplete)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			host := args[0]
			program := args[1:]

			if forceNoPty && forcePty {
				return fmt.Errorf("rsrs: -t and -T are mutually exclusive")
			}

			ptyMode := session.PtyAuto
			switch core.Config.PtyMode {
			case "enable":
				ptyMode = session.PtyEnable
			case "disable":
				ptyMode = session.PtyDisable
			}
			switch {
			case forcePty:
				ptyMode = session.PtyEnable
			case forceNoPty:
				ptyMode = session.PtyDisable
			}

			if noSpawn {
				ptyMode = session.PtyDisable
			}

			sshArgs := []string{host, remoteBinary, "remote"}
			if ptyMode == session.PtyDisable {
				sshArgs = append([]string{"-T"}, sshArgs...)
			} else {
				sshArgs = append([]string{"-t"}, sshArgs...)
			}

			forward := append([]string{}, core.Config.ForwardEnv...)
			forward = append(forward, forwardEnv...)

			opts := session.Options{
				RemoteArgv: append([]string{"ssh"}, sshArgs...),
				Program:    program,
				PtyMode:    ptyMode,
				ForwardEnv: forward,
				NoSpawn:    noSpawn,
				Label:      host,
			}

			code, err := session.Run(context.Background(), opts)
			if err != nil {
				return err
			}
			os.Exit(code)
			return nil
		},
	}

	loginCmd.Flags().BoolVarP(&forceNoPty, "no-pty", "T", false, "never allocate a pty")
	loginCmd.Flags().BoolVarP(&forcePty, "force-pty", "t", false, "always allocate a pty")
	loginCmd.Flags().BoolVarP(&noSpawn, "no-spawn", "N", false, "do not spawn a remote command at all")
	loginCmd.Flags().StringVar(&remoteBinary, "remote-binary", "rsrs", "path to the rsrs binary on the remote host")
	loginCmd.Flags().StringArrayVar(&forwardEnv, "forward-env", nil, "additional environment variable name to forward (repeatable)")

	return loginCmd
}
