package relay

import (
	"context"
	"fmt"

	"github.com/danmuck/tetherctl/internal/observability"
	"github.com/danmuck/tetherctl/internal/wire"
)

// route dispatches one raw inbound line from a session.
func (r *Relay) route(s *Session, line []byte) {
	f, err := wire.DecodeFrame(line)
	if err != nil {
		r.routeMalformed(s, line, err)
		return
	}
	observability.RecordFrame("in", f.Type)
	switch f.Type {
	case wire.TypePing:
		s.touch()
		if err := s.send(wire.Pong()); err != nil {
			r.log.Debug().Msgf("relay.route pong write epoch=%d err=%v", s.Epoch(), err)
		}
	case wire.TypePong:
		s.touch()
	case wire.TypeResponse:
		r.correlator.Resolve(f.RequestID, f.Data)
	case wire.TypeError:
		r.correlator.Reject(f.RequestID, f.Error)
	case wire.TypeRequest:
		go r.respond(s, f)
	}
}

// routeMalformed logs a frame that failed decoding and, when the request id
// survives, answers it so the peer is not left waiting. Malformed input
// never terminates the session.
func (r *Relay) routeMalformed(s *Session, line []byte, decodeErr error) {
	observability.RecordMalformedFrame()
	r.log.Warn().Msgf("relay.route %s epoch=%d err=%v", ErrMalformedFrame, s.Epoch(), decodeErr)
	id, ok := wire.SalvageRequestID(line)
	if !ok {
		return
	}
	reply := wire.ErrorFrame(id, fmt.Sprintf("malformed frame: %v", decodeErr))
	if err := s.send(reply); err != nil {
		r.log.Debug().Msgf("relay.route malformed reply request_id=%q err=%v", id, err)
	}
}

// respond executes one inbound peer request off the read loop and always
// writes exactly one reply frame carrying the request id. Responder
// failures are encoded as error frames, never silence.
func (r *Relay) respond(s *Session, f wire.Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.CallTimeout)
	defer cancel()

	var reply wire.Frame
	if r.responder == nil {
		reply = wire.ErrorFrame(f.RequestID, fmt.Sprintf("no handler for tool %q", f.Tool))
	} else {
		data, err := r.responder.Respond(ctx, f.Tool, f.Params)
		if err != nil {
			reply = wire.ErrorFrame(f.RequestID, err.Error())
		} else {
			reply = wire.Response(f.RequestID, data)
		}
	}
	if err := s.send(reply); err != nil {
		r.log.Warn().Msgf("relay.respond reply request_id=%q tool=%q err=%v", f.RequestID, f.Tool, err)
		return
	}
	r.log.Debug().Msgf("relay.respond request_id=%q tool=%q reply=%s", f.RequestID, f.Tool, reply.Type)
}
