package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/tetherctl/internal/logging"
	"github.com/danmuck/tetherctl/internal/observability"
	"github.com/danmuck/tetherctl/internal/wire"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Role is the arbitration state of one relay process. Transitions are
// one-directional except follower, which re-enters arbitration when its
// session drops. A listener never demotes.
type Role string

const (
	RoleUnset    Role = "unset"
	RoleAspiring Role = "aspiring-listener"
	RoleListener Role = "listener"
	RoleFollower Role = "follower"
)

// Responder answers inbound peer requests by tool name. Each request runs
// on its own goroutine; implementations must honor ctx.
type Responder interface {
	Respond(ctx context.Context, tool string, params json.RawMessage) (json.RawMessage, error)
}

// Relay pairs the local host with at most one remote peer session and
// correlates calls across it in both directions.
type Relay struct {
	cfg        Config
	log        zerolog.Logger
	responder  Responder
	correlator *Correlator

	epochSeq atomic.Uint64

	mu      sync.Mutex
	session *Session
	role    Role

	closeOnce sync.Once
	closed    chan struct{}
}

func New(cfg Config, responder Responder) *Relay {
	return &Relay{
		cfg:        cfg.WithDefaults(),
		log:        logging.Component("relay"),
		responder:  responder,
		correlator: NewCorrelator(),
		role:       RoleUnset,
		closed:     make(chan struct{}),
	}
}

// Config returns the effective configuration after defaults.
func (r *Relay) Config() Config {
	return r.cfg
}

// Status is a point-in-time snapshot of relay state.
type Status struct {
	Role          Role      `json:"role"`
	PeerConnected bool      `json:"peer_connected"`
	RemoteAddr    string    `json:"remote_addr,omitempty"`
	SessionEpoch  uint64    `json:"session_epoch,omitempty"`
	SessionOrigin string    `json:"session_origin,omitempty"`
	PendingCalls  int       `json:"pending_calls"`
	LastAckAt     time.Time `json:"last_ack_at"`
}

func (r *Relay) Status() Status {
	r.mu.Lock()
	s := r.session
	role := r.role
	r.mu.Unlock()
	st := Status{
		Role:         role,
		PendingCalls: r.correlator.PendingCount(),
	}
	if s != nil {
		st.PeerConnected = true
		st.RemoteAddr = s.RemoteAddr()
		st.SessionEpoch = s.Epoch()
		st.SessionOrigin = s.Origin()
		st.LastAckAt = s.lastAckAt()
	}
	return st
}

func (r *Relay) Role() Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.role
}

func (r *Relay) setRole(role Role) {
	r.mu.Lock()
	prev := r.role
	r.role = role
	r.mu.Unlock()
	if prev != role {
		r.log.Info().Msgf("relay.setRole %s -> %s", prev, role)
	}
}

// AttachOutbound installs a dialed connection as the live peer session.
// The call command uses this to reach a running listener directly.
func (r *Relay) AttachOutbound(conn net.Conn) *Session {
	return r.attach(conn, OriginOutbound)
}

func (r *Relay) attach(conn net.Conn, origin string) *Session {
	s := newSession(r.epochSeq.Add(1), origin, conn, r.cfg.WriteTimeout)
	r.install(s)
	return s
}

// install makes s the one live session. Any predecessor is closed inside
// the same critical section, then its pending calls fail; a stale sender
// that slips between the swap and the epoch sweep self-settles on its dead
// connection instead.
func (r *Relay) install(s *Session) {
	r.mu.Lock()
	prev := r.session
	if prev != nil {
		prev.close(fmt.Errorf("%w: displaced by new peer connection", ErrPeerDisconnected))
	}
	r.session = s
	r.mu.Unlock()

	if prev != nil {
		r.correlator.FailEpoch(prev.Epoch(), ErrPeerDisconnected)
		observability.RecordSessionDisplaced()
		r.log.Warn().Msgf("relay.install session displaced epoch=%d remote=%q", prev.Epoch(), prev.RemoteAddr())
	}
	observability.RecordSessionInstalled(s.Origin())
	r.log.Info().Msgf("relay.install session up epoch=%d origin=%s remote=%q", s.Epoch(), s.Origin(), s.RemoteAddr())
	go r.readLoop(s)
	go r.heartbeatLoop(s)
}

// detach runs once per session, after its read loop ends. It clears the
// live slot if s still owns it and fails the epoch's pending calls with
// the close reason.
func (r *Relay) detach(s *Session) {
	r.mu.Lock()
	current := r.session == s
	if current {
		r.session = nil
	}
	r.mu.Unlock()

	reason := s.closeReason()
	kind := closeKind(reason)
	r.correlator.FailEpoch(s.Epoch(), kind)
	observability.RecordSessionClosed(closeLabel(kind))
	if current {
		r.log.Warn().Msgf("relay.detach session down epoch=%d reason=%v", s.Epoch(), reason)
	}
}

func (r *Relay) readLoop(s *Session) {
	defer r.detach(s)
	for {
		line, err := wire.ReadLine(s.reader)
		if err != nil {
			if errors.Is(err, wire.ErrFrameTooLarge) {
				r.log.Warn().Msgf("relay.readLoop oversized frame dropped epoch=%d", s.Epoch())
				observability.RecordMalformedFrame()
				continue
			}
			s.close(fmt.Errorf("%w: read: %v", ErrPeerDisconnected, err))
			return
		}
		r.route(s, line)
	}
}

// Invoke issues one named call to the connected peer and blocks for the
// reply, the per-call timeout, or session loss, whichever settles first.
func (r *Relay) Invoke(ctx context.Context, tool string, params json.RawMessage) (json.RawMessage, error) {
	start := time.Now()
	data, err := r.invoke(ctx, tool, params)
	observability.RecordCall(callOutcome(err), time.Since(start))
	return data, err
}

func (r *Relay) invoke(ctx context.Context, tool string, params json.RawMessage) (json.RawMessage, error) {
	if strings.TrimSpace(tool) == "" {
		return nil, ErrToolRequired
	}
	select {
	case <-r.closed:
		return nil, fmt.Errorf("%w: tool=%q", ErrClosed, tool)
	default:
	}

	r.mu.Lock()
	s := r.session
	r.mu.Unlock()
	if s == nil {
		return nil, fmt.Errorf("%w: tool=%q", ErrNoPeer, tool)
	}

	timeout := r.cfg.CallTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}

	id := r.correlator.NextRequestID()
	call := r.correlator.register(id, tool, s.Epoch(), timeout)
	r.log.Debug().Msgf("relay.Invoke request_id=%q tool=%q epoch=%d timeout=%s", id, tool, s.Epoch(), timeout)
	if err := s.send(wire.Request(id, tool, params)); err != nil {
		r.correlator.settle(id, callResult{err: fmt.Errorf("%w: send: %v", ErrPeerDisconnected, err)})
	}

	select {
	case res := <-call.done:
		return res.data, res.err
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: tool=%q", ErrTimeoutExceeded, tool)
		}
		r.correlator.settle(id, callResult{err: err})
		res := <-call.done
		return res.data, res.err
	}
}

// Close tears down the live session and fails every pending call. Safe to
// call more than once.
func (r *Relay) Close() {
	r.closeOnce.Do(func() {
		close(r.closed)
		r.mu.Lock()
		s := r.session
		r.session = nil
		r.mu.Unlock()
		if s != nil {
			s.close(fmt.Errorf("%w: relay shutdown", ErrClosed))
		}
		r.correlator.FailAll(ErrClosed)
		r.log.Info().Msg("relay.Close shutdown complete")
	})
}

// closeKind maps a session close reason onto the call failure taxonomy.
func closeKind(reason error) error {
	switch {
	case errors.Is(reason, ErrHeartbeatTimeout):
		return ErrHeartbeatTimeout
	case errors.Is(reason, ErrClosed):
		return ErrClosed
	default:
		return ErrPeerDisconnected
	}
}

func closeLabel(kind error) string {
	switch {
	case errors.Is(kind, ErrHeartbeatTimeout):
		return "heartbeat-timeout"
	case errors.Is(kind, ErrClosed):
		return "shutdown"
	default:
		return "peer-disconnected"
	}
}

func callOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoPeer):
		return "no-peer"
	case errors.Is(err, ErrTimeoutExceeded):
		return "timeout-exceeded"
	case errors.Is(err, ErrHeartbeatTimeout):
		return "heartbeat-timeout"
	case errors.Is(err, ErrPeerDisconnected):
		return "peer-disconnected"
	case errors.Is(err, ErrRemote):
		return "remote-error"
	case errors.Is(err, ErrClosed):
		return "closed"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
