// Package runfile tracks the serve process on disk so the lifecycle
// commands can find, probe, and stop it.
package runfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const (
	pidFile  = "tetherctl.pid"
	portFile = "tetherctl.port"
	logFile  = "tetherctl.log"
)

var ErrNotRunning = errors.New("runfile: relay not running")

// Paths locates the run directory and the files inside it.
type Paths struct {
	Dir  string
	PID  string
	Port string
	Log  string
}

// DefaultDir is the per-user run directory.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("runfile: home dir unavailable: %v", err)
	}
	return filepath.Join(home, ".tetherctl"), nil
}

// In returns the runfile paths under dir.
func In(dir string) Paths {
	return Paths{
		Dir:  dir,
		PID:  filepath.Join(dir, pidFile),
		Port: filepath.Join(dir, portFile),
		Log:  filepath.Join(dir, logFile),
	}
}

// Write records the serve process pid and rendezvous port, creating the
// run directory when needed.
func (p Paths) Write(pid int, port int) error {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return fmt.Errorf("runfile: create dir %q: %v", p.Dir, err)
	}
	if err := os.WriteFile(p.PID, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return fmt.Errorf("runfile: write pid: %v", err)
	}
	if err := os.WriteFile(p.Port, []byte(strconv.Itoa(port)+"\n"), 0o644); err != nil {
		return fmt.Errorf("runfile: write port: %v", err)
	}
	return nil
}

// ReadPID returns the recorded serve pid. A missing file reports
// ErrNotRunning.
func (p Paths) ReadPID() (int, error) {
	return p.readInt(p.PID)
}

// ReadPort returns the recorded rendezvous port. A missing file reports
// ErrNotRunning.
func (p Paths) ReadPort() (int, error) {
	return p.readInt(p.Port)
}

func (p Paths) readInt(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s missing", ErrNotRunning, filepath.Base(path))
		}
		return 0, fmt.Errorf("runfile: read %q: %v", path, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("runfile: corrupt %q: %q", path, strings.TrimSpace(string(data)))
	}
	return n, nil
}

// Remove clears the pid and port files. Already-missing files are fine.
func (p Paths) Remove() error {
	for _, path := range []string{p.PID, p.Port} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("runfile: remove %q: %v", path, err)
		}
	}
	return nil
}

// Alive reports whether pid names a live process. A permission error on
// the probe still means the process exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
