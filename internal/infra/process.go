// Package infra implements infrastructure concerns (storage, processes,
// desktop integration, remote sync).
package infra

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
)

// Linux truncates process names to this many bytes.
const commNameLimit = 15

// ProcessManagerImpl finds and terminates the processes behind a shielded
// app, using gopsutil.
type ProcessManagerImpl struct{}

// NewProcessManager creates a new process manager.
func NewProcessManager() *ProcessManagerImpl {
	return &ProcessManagerImpl{}
}

// FindByName returns PIDs whose name contains pattern, ignoring case.
// Truncated names are matched against the executable path instead.
func (pm *ProcessManagerImpl) FindByName(pattern string) ([]int, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	var found []int
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue // exited while listing
		}
		if matchesApp(name, pattern) {
			found = append(found, int(p.Pid))
			continue
		}
		if len(name) < commNameLimit {
			continue
		}
		if exe, err := p.Exe(); err == nil && matchesApp(filepath.Base(exe), pattern) {
			found = append(found, int(p.Pid))
		}
	}
	return found, nil
}

func matchesApp(name, pattern string) bool {
	if pattern == "" {
		return false
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(pattern))
}

// NameOf returns the executable name of a PID.
func (pm *ProcessManagerImpl) NameOf(pid int) (string, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", err
	}
	return p.Name()
}

// Kill sends SIGKILL to pid. A process that is already gone counts as
// killed, since the app is no longer in front of the user.
func (pm *ProcessManagerImpl) Kill(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if errors.Is(err, process.ErrorProcessNotRunning) {
		return nil
	}
	if err != nil {
		return err
	}
	return p.Kill()
}

// IsRunning reports whether pid exists.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

// Ensure ProcessManagerImpl implements domain.ProcessManager.
var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
