// Package config carries the starter configuration template for the
// relay CLI.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Template returns the starter config.toml contents.
func Template() string {
	return relayTemplate
}

// WriteTemplate writes the starter config, refusing to clobber an
// existing file unless overwrite is set.
func WriteTemplate(path string, overwrite bool) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config template path required")
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(relayTemplate), 0o600)
}

const relayTemplate = `# tetherctl relay configuration
# Durations are integer milliseconds. Commented keys show the defaults.

# Rendezvous TCP port. The listener binds it; followers dial it on loopback.
port = 11041

# bind_host = "0.0.0.0"
# dial_host = "127.0.0.1"

# Liveness: ping cadence and the silence window that force-closes a session.
# heartbeat_interval_ms = 15000
# heartbeat_timeout_ms = 45000

# Per-call reply deadline.
# call_timeout_ms = 30000

# Follower dial deadline, and bind retry spacing after a failed dial.
# handshake_timeout_ms = 10000
# retry_cooldown_ms = 5000

# Frame write deadline.
# write_timeout_ms = 10000

# Re-arbitration backoff after losing a session.
# backoff_initial_ms = 1000
# backoff_multiplier = 2.0
# backoff_max_ms = 30000
# backoff_jitter = true

# Serve health, status and Prometheus metrics when set.
# debug_addr = "127.0.0.1:9311"

# Run directory for pid/port files.
# run_dir = "~/.tetherctl"
`
