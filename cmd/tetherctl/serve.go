package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/tetherctl/internal/catalog"
	"github.com/danmuck/tetherctl/internal/logging"
	"github.com/danmuck/tetherctl/internal/relay"
	"github.com/danmuck/tetherctl/internal/runfile"
	"github.com/danmuck/tetherctl/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port int
	var debugAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := appConfigFromCmd(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Relay.Port = port
			}
			if strings.TrimSpace(debugAddr) != "" {
				cfg.DebugAddr = strings.TrimSpace(debugAddr)
			}

			reg := catalog.NewRegistry()
			rly := relay.New(cfg.Relay, reg)
			if err := catalog.RegisterBuiltins(reg, buildVersion, func() any { return rly.Status() }); err != nil {
				return err
			}

			paths, err := cfg.runPaths()
			if err != nil {
				return err
			}
			owned, err := claimRunfiles(paths, rly.Config().Port)
			if err != nil {
				return err
			}
			if owned {
				defer func() { _ = paths.Remove() }()
			}

			if cfg.DebugAddr != "" {
				dbg := server.NewDebug(cfg.DebugAddr, buildVersion, func() any { return rly.Status() })
				log := logging.Component("serve")
				go func() {
					if err := dbg.Run(runCtx); err != nil {
						log.Warn().Msgf("serve debug http addr=%q err=%v", cfg.DebugAddr, err)
					}
				}()
			}
			return rly.Run(runCtx)
		},
	}
	cmd.Flags().IntVar(&port, "port", relay.DefaultPort, "Rendezvous TCP port")
	cmd.Flags().StringVar(&debugAddr, "debug-addr", "", "Serve health, status and Prometheus metrics on this address (disabled when empty)")
	return cmd
}

// claimRunfiles records this process unless another live serve already
// holds the runfiles. Concurrent serves are legitimate during arbitration,
// so a second instance just runs unrecorded.
func claimRunfiles(paths runfile.Paths, port int) (bool, error) {
	log := logging.Component("serve")
	if pid, err := paths.ReadPID(); err == nil && pid != os.Getpid() && runfile.Alive(pid) {
		log.Info().Msgf("serve runfiles held by pid=%d, leaving them untouched", pid)
		return false, nil
	}
	if err := paths.Write(os.Getpid(), port); err != nil {
		return false, err
	}
	return true, nil
}
