package relay

import "errors"

// Failure kinds for relayed calls and session teardown. Callers match with
// errors.Is; detail text travels in the wrapping error.
var (
	ErrNoPeer           = errors.New("relay: no-peer")
	ErrPeerDisconnected = errors.New("relay: peer-disconnected")
	ErrTimeoutExceeded  = errors.New("relay: timeout-exceeded")
	ErrHeartbeatTimeout = errors.New("relay: heartbeat-timeout")
	ErrMalformedFrame   = errors.New("relay: malformed-frame")
	ErrBindConflict     = errors.New("relay: bind-conflict")
	ErrHandshakeTimeout = errors.New("relay: handshake-timeout")
	ErrRemote           = errors.New("relay: remote error")
	ErrToolRequired     = errors.New("relay: tool required")
	ErrClosed           = errors.New("relay: closed")
)
