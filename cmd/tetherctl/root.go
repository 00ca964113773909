package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/tetherctl/internal/logging"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tetherctl",
		Short: "Single-peer command relay between a local host and its device bridge",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := applyLogLevelFlag(cmd); err != nil {
				return err
			}
			logging.ConfigureRuntime()
			return nil
		},
	}
	cmd.PersistentFlags().String("config", "", "Path to TOML config file")
	cmd.PersistentFlags().String("run-dir", "", "Run directory for pid/port files (default ~/.tetherctl)")
	cmd.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newCallCmd())
	cmd.AddCommand(newToolsCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// applyLogLevelFlag routes the flag through the logging env override so
// one code path decides the level.
func applyLogLevelFlag(cmd *cobra.Command) error {
	raw, _ := cmd.Flags().GetString("log-level")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	switch strings.ToLower(raw) {
	case "trace", "debug", "info", "warn", "error", "disabled":
		return os.Setenv(logging.EnvLogLevel, strings.ToLower(raw))
	default:
		return fmt.Errorf("invalid --log-level %q (supported: debug, info, warn, error)", raw)
	}
}
