package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

// StartDetached spawns `presentd daemon` as an independent background
// process. Extra args are passed through (e.g. --data-dir).
func StartDetached(args ...string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, err
	}
	return StartDetachedWithPath(executable, args...)
}

// StartDetachedWithPath spawns the daemon from a specific binary (for tests).
func StartDetachedWithPath(executable string, args ...string) (int, error) {
	cmd := exec.Command(executable, append([]string{"daemon"}, args...)...)

	// New session, no terminal, no inherited stdio.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// Not waited on; the child outlives us.
	_ = cmd.Process.Release()
	return pid, nil
}

// ErrAlreadyRunning is returned when another daemon holds the lock.
var ErrAlreadyRunning = errors.New("daemon already running")

// AcquireLock takes an exclusive lock on path and writes our PID into it.
// The returned func releases the lock.
func AcquireLock(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	_ = f.Truncate(0)
	_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)

	return func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
		_ = os.Remove(path)
	}, nil
}
