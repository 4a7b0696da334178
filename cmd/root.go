package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/gifnksm/rsrs/internal/core"
)

// NewRootCommand builds the rsrs command tree.
func NewRootCommand() *cobra.Command {
	var configPath string
	var verbose int

	homeDir, _ := os.UserHomeDir()

	rootCmd := &cobra.Command{
		Use:   "rsrs",
		Short: "rsrs - SSH-tunneled remote process execution",
		Long:  `rsrs drives a remote shell or process over an ssh pipe using a small framed wire protocol, with optional pty allocation and a local session daemon.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			messages, err := core.InitializeConfig(cmd)
			for _, message := range messages {
				fmt.Fprintln(os.Stderr, message)
			}
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if verbose > 0 || core.Config.Verbose > 0 {
				level = slog.LevelDebug
			} else if err := level.UnmarshalText([]byte(core.Config.LogLevel)); err != nil {
				level = slog.LevelInfo
			}

			slog.SetDefault(slog.New(
				tint.NewHandler(os.Stderr, &tint.Options{
					Level:      level,
					TimeFormat: time.DateTime,
				}),
			))

			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config-path", fmt.Sprintf("%s/%s", homeDir, core.BaseDirName),
		"config path",
	)
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "more output, repeat for even more")

	rootCmd.AddCommand(
		NewLoginCommand(),
		NewRemoteCommand(),
		NewOpenCommand(),
		NewDaemonCommand(),
		NewVersionCommand(),
		NewStatsCommand(),
	)

	return rootCmd
}
