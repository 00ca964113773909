package relay

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/tetherctl/internal/observability"
	"github.com/danmuck/tetherctl/internal/wire"
)

// Session origins observed in status snapshots and logs.
const (
	OriginAccepted = "accepted"
	OriginOutbound = "outbound"
)

// Session owns exactly one peer connection. The relay holds at most one
// live Session; an installed successor closes its predecessor first.
type Session struct {
	epoch  uint64
	origin string
	conn   net.Conn
	reader *bufio.Reader

	writeMu      sync.Mutex
	writeTimeout time.Duration

	lastAck atomic.Int64

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

func newSession(epoch uint64, origin string, conn net.Conn, writeTimeout time.Duration) *Session {
	s := &Session{
		epoch:        epoch,
		origin:       origin,
		conn:         conn,
		reader:       bufio.NewReader(conn),
		writeTimeout: writeTimeout,
		closed:       make(chan struct{}),
	}
	s.touch()
	return s
}

// Epoch identifies this session for pending-call ownership.
func (s *Session) Epoch() uint64 {
	return s.epoch
}

func (s *Session) Origin() string {
	return s.origin
}

func (s *Session) RemoteAddr() string {
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// touch records a liveness acknowledgment from the peer.
func (s *Session) touch() {
	s.lastAck.Store(time.Now().UnixNano())
}

func (s *Session) lastAckAt() time.Time {
	return time.Unix(0, s.lastAck.Load())
}

// send writes one frame under the session write lock. A failed write closes
// the session with the write error as reason.
func (s *Session) send(f wire.Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	select {
	case <-s.closed:
		return fmt.Errorf("%w: session closed", ErrPeerDisconnected)
	default:
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := wire.WriteFrame(s.conn, f); err != nil {
		s.close(fmt.Errorf("%w: write: %v", ErrPeerDisconnected, err))
		return err
	}
	observability.RecordFrame("out", f.Type)
	return nil
}

// close shuts the connection down exactly once and records the reason.
func (s *Session) close(reason error) {
	s.closeOnce.Do(func() {
		s.closeErr = reason
		_ = s.conn.Close()
		close(s.closed)
	})
}

// Done is closed once the session is terminated for any reason.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

func (s *Session) closeReason() error {
	select {
	case <-s.closed:
		return s.closeErr
	default:
		return nil
	}
}
