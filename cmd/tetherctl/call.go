package main

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/tetherctl/internal/catalog"
	"github.com/danmuck/tetherctl/internal/relay"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newCallCmd() *cobra.Command {
	var port int
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "call <tool> [params-json]",
		Short: "Invoke one tool on the running relay and print the reply",
		Long: `Invoke one tool on the running relay and print the reply.

The command connects as the relay's peer for the duration of the call, so
it competes with any other connected peer (last connection wins).`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appConfigFromCmd(cmd)
			if err != nil {
				return err
			}

			tool := strings.TrimSpace(args[0])
			var params json.RawMessage
			if len(args) == 2 {
				params = json.RawMessage(args[1])
			}
			if err := catalog.ValidateCall(tool, params); err != nil {
				if errors.Is(err, catalog.ErrUnknownTool) {
					return fmt.Errorf("%w (known tools: %s)", err, strings.Join(catalog.Names(), ", "))
				}
				return err
			}

			dialPort, err := resolveCallPort(cmd, cfg, port)
			if err != nil {
				return err
			}
			addr := net.JoinHostPort(cfg.Relay.DialHost, strconv.Itoa(dialPort))
			conn, err := net.DialTimeout("tcp", addr, cfg.Relay.HandshakeTimeout)
			if err != nil {
				return fmt.Errorf("no relay listening on %s: %v", addr, err)
			}

			if timeout > 0 {
				cfg.Relay.CallTimeout = timeout
			}
			rly := relay.New(cfg.Relay, nil)
			defer rly.Close()
			rly.AttachOutbound(conn)

			data, err := rly.Invoke(cmd.Context(), tool, params)
			if err != nil {
				return err
			}
			printData(cmd.OutOrStdout(), data)
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Rendezvous port (default: runfile, then config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-call timeout (default 30s)")
	return cmd
}

// resolveCallPort prefers an explicit flag, then the live runfile, then
// the configured port.
func resolveCallPort(cmd *cobra.Command, cfg appConfig, flagPort int) (int, error) {
	if cmd.Flags().Changed("port") {
		if flagPort < 1 || flagPort > 65535 {
			return 0, fmt.Errorf("port %d out of range", flagPort)
		}
		return flagPort, nil
	}
	if paths, err := cfg.runPaths(); err == nil {
		if port, err := paths.ReadPort(); err == nil {
			return port, nil
		}
	}
	return cfg.Relay.Port, nil
}
