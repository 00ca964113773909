package main

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/danmuck/tetherctl/internal/runfile"
	"github.com/spf13/cobra"
)

type statusView struct {
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
	Port    int    `json:"port,omitempty"`
	Probe   string `json:"probe,omitempty"`
}

func newStatusCmd() *cobra.Command {
	var probe bool
	var outputJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether the background relay is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appConfigFromCmd(cmd)
			if err != nil {
				return err
			}
			paths, err := cfg.runPaths()
			if err != nil {
				return err
			}

			var view statusView
			pid, err := paths.ReadPID()
			switch {
			case err == nil:
				view.PID = pid
				view.Running = runfile.Alive(pid)
				if port, err := paths.ReadPort(); err == nil {
					view.Port = port
				}
			case errors.Is(err, runfile.ErrNotRunning):
			default:
				return err
			}

			if probe && view.Running && view.Port > 0 {
				view.Probe = probePort(cfg.Relay.DialHost, view.Port)
			}

			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), view)
			}
			if !view.Running {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "relay not running")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "relay running pid=%d port=%d\n", view.PID, view.Port)
			if view.Probe != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "probe: %s\n", view.Probe)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "Dial the rendezvous port to verify it accepts (displaces any connected peer)")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Print as JSON")
	return cmd
}

// probePort checks that the rendezvous port accepts a TCP connection. The
// accepted connection becomes the listener's live session for a moment, so
// this is opt-in.
func probePort(host string, port int) string {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return fmt.Sprintf("unreachable: %v", err)
	}
	_ = conn.Close()
	return "accepting"
}
