package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/tetherctl/internal/relay"
	"github.com/danmuck/tetherctl/internal/runfile"
	"github.com/spf13/cobra"
)

// tetherctl config.toml key mapping to relay runtime settings. Durations
// are integer milliseconds.
type fileConfig struct {
	Port                int     `toml:"port"`
	BindHost            string  `toml:"bind_host"`
	DialHost            string  `toml:"dial_host"`
	HeartbeatIntervalMS int     `toml:"heartbeat_interval_ms"`
	HeartbeatTimeoutMS  int     `toml:"heartbeat_timeout_ms"`
	CallTimeoutMS       int     `toml:"call_timeout_ms"`
	HandshakeTimeoutMS  int     `toml:"handshake_timeout_ms"`
	RetryCooldownMS     int     `toml:"retry_cooldown_ms"`
	WriteTimeoutMS      int     `toml:"write_timeout_ms"`
	BackoffInitialMS    int     `toml:"backoff_initial_ms"`
	BackoffMultiplier   float64 `toml:"backoff_multiplier"`
	BackoffMaxMS        int     `toml:"backoff_max_ms"`
	BackoffJitter       bool    `toml:"backoff_jitter"`
	DebugAddr           string  `toml:"debug_addr"`
	RunDir              string  `toml:"run_dir"`
}

// appConfig is the resolved process configuration: relay settings plus
// CLI-only extras.
type appConfig struct {
	Relay     relay.Config
	DebugAddr string
	RunDir    string
}

// loadAppConfig overlays a TOML file onto the defaults. An empty path
// returns the defaults untouched.
func loadAppConfig(path string) (appConfig, error) {
	cfg := appConfig{Relay: relay.DefaultConfig()}
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return appConfig{}, fmt.Errorf("load relay config: %w", err)
	}

	if meta.IsDefined("port") {
		if raw.Port < 1 || raw.Port > 65535 {
			return appConfig{}, fmt.Errorf("load relay config: port %d out of range", raw.Port)
		}
		cfg.Relay.Port = raw.Port
	}
	if meta.IsDefined("bind_host") {
		cfg.Relay.BindHost = strings.TrimSpace(raw.BindHost)
	}
	if meta.IsDefined("dial_host") {
		cfg.Relay.DialHost = strings.TrimSpace(raw.DialHost)
	}
	durations := []struct {
		key     string
		defined bool
		ms      int
		dst     *time.Duration
	}{
		{"heartbeat_interval_ms", meta.IsDefined("heartbeat_interval_ms"), raw.HeartbeatIntervalMS, &cfg.Relay.HeartbeatInterval},
		{"heartbeat_timeout_ms", meta.IsDefined("heartbeat_timeout_ms"), raw.HeartbeatTimeoutMS, &cfg.Relay.HeartbeatTimeout},
		{"call_timeout_ms", meta.IsDefined("call_timeout_ms"), raw.CallTimeoutMS, &cfg.Relay.CallTimeout},
		{"handshake_timeout_ms", meta.IsDefined("handshake_timeout_ms"), raw.HandshakeTimeoutMS, &cfg.Relay.HandshakeTimeout},
		{"retry_cooldown_ms", meta.IsDefined("retry_cooldown_ms"), raw.RetryCooldownMS, &cfg.Relay.RetryCooldown},
		{"write_timeout_ms", meta.IsDefined("write_timeout_ms"), raw.WriteTimeoutMS, &cfg.Relay.WriteTimeout},
		{"backoff_initial_ms", meta.IsDefined("backoff_initial_ms"), raw.BackoffInitialMS, &cfg.Relay.Backoff.InitialDelay},
		{"backoff_max_ms", meta.IsDefined("backoff_max_ms"), raw.BackoffMaxMS, &cfg.Relay.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if !d.defined {
			continue
		}
		if d.ms <= 0 {
			return appConfig{}, fmt.Errorf("load relay config: %s must be positive, got %d", d.key, d.ms)
		}
		*d.dst = time.Duration(d.ms) * time.Millisecond
	}
	if meta.IsDefined("backoff_multiplier") {
		if raw.BackoffMultiplier < 1.0 {
			return appConfig{}, fmt.Errorf("load relay config: backoff_multiplier must be >= 1.0, got %v", raw.BackoffMultiplier)
		}
		cfg.Relay.Backoff.Multiplier = raw.BackoffMultiplier
	}
	if meta.IsDefined("backoff_jitter") {
		cfg.Relay.Backoff.Jitter = raw.BackoffJitter
	}
	if meta.IsDefined("debug_addr") {
		cfg.DebugAddr = strings.TrimSpace(raw.DebugAddr)
	}
	if meta.IsDefined("run_dir") {
		cfg.RunDir = strings.TrimSpace(raw.RunDir)
	}
	if cfg.Relay.HeartbeatTimeout <= cfg.Relay.HeartbeatInterval {
		return appConfig{}, fmt.Errorf(
			"load relay config: heartbeat_timeout_ms %s must exceed heartbeat_interval_ms %s",
			cfg.Relay.HeartbeatTimeout, cfg.Relay.HeartbeatInterval,
		)
	}
	return cfg, nil
}

// appConfigFromCmd resolves the file config plus persistent flag overrides.
func appConfigFromCmd(cmd *cobra.Command) (appConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := loadAppConfig(strings.TrimSpace(path))
	if err != nil {
		return appConfig{}, err
	}
	if dir, _ := cmd.Flags().GetString("run-dir"); strings.TrimSpace(dir) != "" {
		cfg.RunDir = strings.TrimSpace(dir)
	}
	return cfg, nil
}

// runPaths resolves the runfile locations, falling back to the per-user
// default directory.
func (c appConfig) runPaths() (runfile.Paths, error) {
	dir := expandHomePath(strings.TrimSpace(c.RunDir))
	if dir == "" {
		d, err := runfile.DefaultDir()
		if err != nil {
			return runfile.Paths{}, err
		}
		dir = d
	}
	return runfile.In(dir), nil
}

func expandHomePath(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return path
}
