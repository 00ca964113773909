package main

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/danmuck/tetherctl/internal/runfile"
	"github.com/spf13/cobra"
)

const stopWait = 5 * time.Second

func newStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the background relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appConfigFromCmd(cmd)
			if err != nil {
				return err
			}
			paths, err := cfg.runPaths()
			if err != nil {
				return err
			}

			pid, err := paths.ReadPID()
			if err != nil {
				if errors.Is(err, runfile.ErrNotRunning) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "relay not running")
					return nil
				}
				return err
			}
			if !runfile.Alive(pid) {
				if err := paths.Remove(); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cleared stale runfiles (pid=%d gone)\n", pid)
				return nil
			}

			proc, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("find pid=%d: %v", pid, err)
			}
			if err := proc.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("signal pid=%d: %v", pid, err)
			}

			deadline := time.Now().Add(stopWait)
			for time.Now().Before(deadline) {
				if !runfile.Alive(pid) {
					_ = paths.Remove()
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "stopped pid=%d\n", pid)
					return nil
				}
				time.Sleep(100 * time.Millisecond)
			}
			return fmt.Errorf("relay pid=%d did not exit within %s", pid, stopWait)
		},
	}
	return cmd
}
