package relay

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"syscall"
	"time"
)

// Run drives role arbitration until ctx cancels: bind the rendezvous port
// as listener when it is free, otherwise follow the process holding it.
// Only a successful bind ever promotes this relay to listener; the OS makes
// the election atomic.
func (r *Relay) Run(ctx context.Context) error {
	defer r.Close()
	r.setRole(RoleAspiring)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	attempt := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		ln, err := r.tryBind()
		if err == nil {
			r.setRole(RoleListener)
			return r.serve(ctx, ln)
		}
		if !errors.Is(err, ErrBindConflict) {
			r.log.Warn().Msgf("relay.Run bind addr=%q err=%v", r.cfg.BindAddr(), err)
			if sleepCtx(ctx, r.cfg.RetryCooldown) != nil {
				return nil
			}
			continue
		}
		r.log.Info().Msgf("relay.Run bind conflict addr=%q, following local listener", r.cfg.BindAddr())

		s, err := r.follow(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.log.Warn().Msgf("relay.Run follower dial addr=%q err=%v", r.cfg.DialAddr(), err)
			if sleepCtx(ctx, r.cfg.RetryCooldown) != nil {
				return nil
			}
			continue
		}

		installedAt := time.Now()
		select {
		case <-ctx.Done():
			return nil
		case <-s.Done():
		}
		r.setRole(RoleAspiring)
		if time.Since(installedAt) >= r.cfg.Backoff.MaxDelay {
			attempt = 0
		}
		attempt++
		delay := NextBackoffDelay(r.cfg.Backoff, attempt, rng)
		r.log.Info().Msgf("relay.Run follower session ended, rearbitrating attempt=%d delay=%s", attempt, delay.Truncate(time.Millisecond))
		if sleepCtx(ctx, delay) != nil {
			return nil
		}
	}
}

// tryBind claims the rendezvous port. A port already held by another
// process reports ErrBindConflict; everything else is a plain bind error.
func (r *Relay) tryBind() (net.Listener, error) {
	ln, err := net.Listen("tcp", r.cfg.BindAddr())
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("%w: %v", ErrBindConflict, err)
		}
		return nil, err
	}
	return ln, nil
}

// serve owns the listener accept loop. Each accepted connection becomes
// the live session, displacing the previous peer (last connection wins).
// Accept errors after startup are non-fatal.
func (r *Relay) serve(ctx context.Context, ln net.Listener) error {
	r.log.Info().Msgf("relay.serve listening addr=%q", ln.Addr().String())
	defer ln.Close()
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			r.log.Warn().Msgf("relay.serve accept err=%v", err)
			if sleepCtx(ctx, time.Second) != nil {
				return nil
			}
			continue
		}
		r.attach(conn, OriginAccepted)
	}
}

// follow dials the live listener within the handshake window and installs
// the outbound session.
func (r *Relay) follow(ctx context.Context) (*Session, error) {
	dialer := net.Dialer{Timeout: r.cfg.HandshakeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", r.cfg.DialAddr())
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, fmt.Errorf("%w: %v", ErrHandshakeTimeout, err)
		}
		return nil, err
	}
	s := r.attach(conn, OriginOutbound)
	r.setRole(RoleFollower)
	return s, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
