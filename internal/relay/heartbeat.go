package relay

import (
	"fmt"
	"time"

	"github.com/danmuck/tetherctl/internal/wire"
)

// heartbeatLoop pings the session every interval and force-closes it once
// silence reaches the timeout. The close-once guard on Session keeps the
// timeout action from firing twice. Monitor state dies with the session;
// nothing carries over to a successor.
func (r *Relay) heartbeatLoop(s *Session) {
	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.Done():
			return
		case <-ticker.C:
			silence := time.Since(s.lastAckAt())
			if silence >= r.cfg.HeartbeatTimeout {
				r.log.Warn().Msgf("relay.heartbeat peer silent epoch=%d silence=%s", s.Epoch(), silence.Truncate(time.Millisecond))
				s.close(fmt.Errorf("%w: no ack for %s", ErrHeartbeatTimeout, silence.Truncate(time.Millisecond)))
				return
			}
			if err := s.send(wire.Ping()); err != nil {
				return
			}
		}
	}
}
