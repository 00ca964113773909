package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/tetherctl/internal/runfile"
	"github.com/spf13/cobra"
)

const startupWait = 5 * time.Second

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Launch the relay in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appConfigFromCmd(cmd)
			if err != nil {
				return err
			}
			paths, err := cfg.runPaths()
			if err != nil {
				return err
			}
			if pid, err := paths.ReadPID(); err == nil && runfile.Alive(pid) {
				return fmt.Errorf("relay already running pid=%d", pid)
			}
			if err := paths.Remove(); err != nil {
				return err
			}
			if err := os.MkdirAll(paths.Dir, 0o755); err != nil {
				return fmt.Errorf("create run dir %q: %v", paths.Dir, err)
			}

			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %v", err)
			}
			childArgs := []string{"serve"}
			for _, flag := range []string{"config", "run-dir", "log-level"} {
				if v, _ := cmd.Flags().GetString(flag); strings.TrimSpace(v) != "" {
					childArgs = append(childArgs, "--"+flag, strings.TrimSpace(v))
				}
			}

			logFile, err := os.OpenFile(paths.Log, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("open log %q: %v", paths.Log, err)
			}
			defer logFile.Close()

			child := exec.Command(exe, childArgs...)
			child.Stdout = logFile
			child.Stderr = logFile
			child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
			if err := child.Start(); err != nil {
				return fmt.Errorf("launch serve: %v", err)
			}

			// serve records its own runfiles once it is up
			deadline := time.Now().Add(startupWait)
			for time.Now().Before(deadline) {
				if pid, err := paths.ReadPID(); err == nil && runfile.Alive(pid) {
					if port, err := paths.ReadPort(); err == nil {
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "started pid=%d port=%d log=%s\n", pid, port, paths.Log)
						return nil
					}
				}
				if !runfile.Alive(child.Process.Pid) {
					return fmt.Errorf("serve exited during startup, check %s", paths.Log)
				}
				time.Sleep(100 * time.Millisecond)
			}
			return fmt.Errorf("relay did not come up within %s, check %s", startupWait, paths.Log)
		},
	}
	return cmd
}
