package relay

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/danmuck/tetherctl/internal/testutil/testlog"
	"github.com/danmuck/tetherctl/internal/wire"
	json "github.com/goccy/go-json"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func arbiterConfig(port int) Config {
	cfg := testConfig()
	cfg.Port = port
	cfg.BindHost = "127.0.0.1"
	cfg.DialHost = "127.0.0.1"
	cfg.HandshakeTimeout = time.Second
	cfg.RetryCooldown = 50 * time.Millisecond
	cfg.Backoff = BackoffConfig{
		InitialDelay: 20 * time.Millisecond,
		Multiplier:   1.5,
		MaxDelay:     100 * time.Millisecond,
		Jitter:       false,
	}
	return cfg
}

func startArbiter(ctx context.Context, r *Relay) <-chan error {
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return done
}

func TestTryBindReportsConflict(t *testing.T) {
	testlog.Start(t)
	port := freePort(t)
	holder, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("hold port: %v", err)
	}
	defer holder.Close()

	r := New(arbiterConfig(port), nil)
	defer r.Close()
	if _, err := r.tryBind(); !errors.Is(err, ErrBindConflict) {
		t.Fatalf("expected ErrBindConflict got=%v", err)
	}
}

func TestArbitrationListenerAndFollower(t *testing.T) {
	testlog.Start(t)
	port := freePort(t)

	echo := responderFunc(func(_ context.Context, tool string, params json.RawMessage) (json.RawMessage, error) {
		if tool != "echo" {
			return nil, errors.New("unknown tool")
		}
		return params, nil
	})

	listener := New(arbiterConfig(port), echo)
	follower := New(arbiterConfig(port), nil)

	listenerCtx, cancelListener := context.WithCancel(context.Background())
	defer cancelListener()
	listenerDone := startArbiter(listenerCtx, listener)
	waitFor(t, 2*time.Second, "listener role", func() bool {
		return listener.Role() == RoleListener
	})

	followerCtx, cancelFollower := context.WithCancel(context.Background())
	defer cancelFollower()
	followerDone := startArbiter(followerCtx, follower)
	waitFor(t, 2*time.Second, "follower role", func() bool {
		return follower.Role() == RoleFollower
	})
	waitFor(t, 2*time.Second, "sessions on both sides", func() bool {
		return listener.Status().PeerConnected && follower.Status().PeerConnected
	})

	data, err := follower.Invoke(context.Background(), "echo", json.RawMessage(`{"n":7}`))
	if err != nil {
		t.Fatalf("end-to-end call: %v", err)
	}
	if string(data) != `{"n":7}` {
		t.Fatalf("unexpected data: %s", data)
	}

	cancelFollower()
	cancelListener()
	<-followerDone
	<-listenerDone
}

func TestFollowerPromotesAfterListenerExit(t *testing.T) {
	testlog.Start(t)
	port := freePort(t)

	first := New(arbiterConfig(port), nil)
	second := New(arbiterConfig(port), nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := startArbiter(firstCtx, first)
	waitFor(t, 2*time.Second, "first relay listening", func() bool {
		return first.Role() == RoleListener
	})

	secondCtx, cancelSecond := context.WithCancel(context.Background())
	defer cancelSecond()
	secondDone := startArbiter(secondCtx, second)
	waitFor(t, 2*time.Second, "second relay following", func() bool {
		return second.Role() == RoleFollower
	})

	cancelFirst()
	<-firstDone
	waitFor(t, 3*time.Second, "second relay promoted", func() bool {
		return second.Role() == RoleListener
	})

	cancelSecond()
	<-secondDone
}

func TestListenerLastConnectionWins(t *testing.T) {
	testlog.Start(t)
	port := freePort(t)

	r := New(arbiterConfig(port), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := startArbiter(ctx, r)
	waitFor(t, 2*time.Second, "listener up", func() bool {
		return r.Role() == RoleListener
	})

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	conn1, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial first: %v", err)
	}
	defer conn1.Close()
	waitFor(t, 2*time.Second, "first session installed", func() bool {
		return r.Status().PeerConnected
	})

	conn2, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer conn2.Close()
	waitFor(t, 2*time.Second, "second session installed", func() bool {
		return r.Status().SessionEpoch == 2
	})

	// the displaced connection is closed by the relay
	_ = conn1.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := wire.ReadLine(bufio.NewReader(conn1)); err == nil {
		t.Fatalf("displaced connection still open")
	}

	cancel()
	<-done
}
