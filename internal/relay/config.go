package relay

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// Rendezvous and liveness defaults for the relay wire contract.
const (
	DefaultPort              = 11041
	DefaultBindHost          = "0.0.0.0"
	DefaultDialHost          = "127.0.0.1"
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultHeartbeatTimeout  = 45 * time.Second
	DefaultCallTimeout       = 30 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultRetryCooldown     = 5 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
)

// BackoffConfig defines follower reconnect backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines rendezvous, liveness, and retry behavior for one relay.
// HandshakeTimeout bounds the follower dial; RetryCooldown spaces bind
// retries after a failed dial (the listener may have died between the bind
// conflict and the dial).
type Config struct {
	BindHost          string
	DialHost          string
	Port              int
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	CallTimeout       time.Duration
	HandshakeTimeout  time.Duration
	RetryCooldown     time.Duration
	WriteTimeout      time.Duration
	Backoff           BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		BindHost:          DefaultBindHost,
		DialHost:          DefaultDialHost,
		Port:              DefaultPort,
		HeartbeatInterval: DefaultHeartbeatInterval,
		HeartbeatTimeout:  DefaultHeartbeatTimeout,
		CallTimeout:       DefaultCallTimeout,
		HandshakeTimeout:  DefaultHandshakeTimeout,
		RetryCooldown:     DefaultRetryCooldown,
		WriteTimeout:      DefaultWriteTimeout,
		Backoff: BackoffConfig{
			InitialDelay: time.Second,
			Multiplier:   2.0,
			MaxDelay:     30 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.BindHost) == "" {
		c.BindHost = def.BindHost
	}
	if strings.TrimSpace(c.DialHost) == "" {
		c.DialHost = def.DialHost
	}
	if c.Port <= 0 {
		c.Port = def.Port
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = def.HeartbeatTimeout
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = def.CallTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.RetryCooldown <= 0 {
		c.RetryCooldown = def.RetryCooldown
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = def.Backoff
	} else {
		if c.Backoff.Multiplier < 1.0 {
			c.Backoff.Multiplier = def.Backoff.Multiplier
		}
		if c.Backoff.MaxDelay <= 0 {
			c.Backoff.MaxDelay = def.Backoff.MaxDelay
		}
	}
	return c
}

// BindAddr is the listener bind target; the wildcard host accepts devices
// from the local network.
func (c Config) BindAddr() string {
	return net.JoinHostPort(c.BindHost, strconv.Itoa(c.Port))
}

// DialAddr is the follower dial target; arbitration always happens against
// the local loopback.
func (c Config) DialAddr() string {
	return net.JoinHostPort(c.DialHost, strconv.Itoa(c.Port))
}
