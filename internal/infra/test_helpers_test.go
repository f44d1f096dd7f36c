package infra

import (
	"context"
	"fmt"
	"strings"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	names      map[int]string
	killedPIDs []int
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		names: make(map[int]string),
	}
}

func (m *mockProcessManager) FindByName(pattern string) ([]int, error) {
	var pids []int
	for pid, name := range m.names {
		if strings.Contains(strings.ToLower(name), strings.ToLower(pattern)) {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

func (m *mockProcessManager) NameOf(pid int) (string, error) {
	name, ok := m.names[pid]
	if !ok {
		return "", fmt.Errorf("process %d not found", pid)
	}
	return name, nil
}

func (m *mockProcessManager) Kill(pid int) error {
	m.killedPIDs = append(m.killedPIDs, pid)
	delete(m.names, pid)
	return nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	_, ok := m.names[pid]
	return ok
}

func (m *mockProcessManager) SetRunning(pid int, name string) {
	m.names[pid] = name
}

// mockCommandRunner records commands and replays canned output.
type mockCommandRunner struct {
	calls  [][]string
	output []byte
	err    error
}

func (m *mockCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	m.calls = append(m.calls, append([]string{name}, args...))
	return m.err
}

func (m *mockCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, append([]string{name}, args...))
	return m.output, m.err
}

var (
	_ domain.ProcessManager = (*mockProcessManager)(nil)
	_ CommandRunner         = (*mockCommandRunner)(nil)
)
