package runfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/tetherctl/internal/testutil/testlog"
)

func TestWriteReadRoundTrip(t *testing.T) {
	testlog.Start(t)
	p := In(filepath.Join(t.TempDir(), "run"))
	if err := p.Write(4242, 11041); err != nil {
		t.Fatalf("write: %v", err)
	}

	pid, err := p.ReadPID()
	if err != nil || pid != 4242 {
		t.Fatalf("pid=%d err=%v", pid, err)
	}
	port, err := p.ReadPort()
	if err != nil || port != 11041 {
		t.Fatalf("port=%d err=%v", port, err)
	}
}

func TestReadMissingReportsNotRunning(t *testing.T) {
	testlog.Start(t)
	p := In(t.TempDir())
	if _, err := p.ReadPID(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning got=%v", err)
	}
	if _, err := p.ReadPort(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning got=%v", err)
	}
}

func TestReadCorruptFileIsNotNotRunning(t *testing.T) {
	testlog.Start(t)
	p := In(t.TempDir())
	if err := os.WriteFile(p.PID, []byte("not-a-pid\n"), 0o644); err != nil {
		t.Fatalf("seed pid file: %v", err)
	}
	_, err := p.ReadPID()
	if err == nil || errors.Is(err, ErrNotRunning) {
		t.Fatalf("corrupt pid file err=%v", err)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	testlog.Start(t)
	p := In(filepath.Join(t.TempDir(), "run"))
	if err := p.Write(1, 2); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := p.Remove(); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := p.Remove(); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if _, err := p.ReadPID(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("pid survives remove: %v", err)
	}
}

func TestAlive(t *testing.T) {
	testlog.Start(t)
	if !Alive(os.Getpid()) {
		t.Fatalf("own process reported dead")
	}
	if Alive(0) || Alive(-5) {
		t.Fatalf("non-positive pid reported alive")
	}
	// beyond the kernel pid space, can never exist
	if Alive(1 << 30) {
		t.Fatalf("impossible pid reported alive")
	}
}
