// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// FakeApp is a long-running process with a distinctive name that stands
// in for a blocked desktop app.
type FakeApp struct {
	Name string
	dir  string
	cmd  *exec.Cmd

	mu     sync.Mutex
	exited bool
	done   chan struct{}
}

// NewFakeApp prepares a fake app binary under dir. Name is kept under
// 15 characters so it survives the kernel's comm truncation.
func NewFakeApp(dir string) *FakeApp {
	return &FakeApp{
		Name: fmt.Sprintf("fakegame%d", os.Getpid()%100000),
		dir:  dir,
		done: make(chan struct{}),
	}
}

// Start copies sleep(1) under the fake name and runs it.
func (f *FakeApp) Start() error {
	src, err := exec.LookPath("sleep")
	if err != nil {
		return fmt.Errorf("sleep not found: %w", err)
	}
	bin := filepath.Join(f.dir, f.Name)
	if err := copyFile(src, bin); err != nil {
		return err
	}

	f.cmd = exec.Command(bin, "300")
	if err := f.cmd.Start(); err != nil {
		return err
	}
	go func() {
		_ = f.cmd.Wait()
		f.mu.Lock()
		f.exited = true
		f.mu.Unlock()
		close(f.done)
	}()
	return nil
}

// PID returns the process id, 0 before Start.
func (f *FakeApp) PID() int {
	if f.cmd == nil || f.cmd.Process == nil {
		return 0
	}
	return f.cmd.Process.Pid
}

// Exited reports whether the process has terminated.
func (f *FakeApp) Exited() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exited
}

// Stop kills the process if it is still running and waits for it.
func (f *FakeApp) Stop() {
	if f.cmd == nil || f.cmd.Process == nil {
		return
	}
	if !f.Exited() {
		_ = f.cmd.Process.Kill()
	}
	select {
	case <-f.done:
	case <-time.After(5 * time.Second):
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
