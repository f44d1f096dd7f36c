package daemon

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
)

// LauncherConfig holds launcher configuration.
type LauncherConfig struct {
	LockPath   string        // Daemon lock file holding its PID
	StaleAfter time.Duration // Heartbeat age after which the daemon counts as gone
	Args       []string      // Extra args for a spawned daemon
}

// Launcher is the monitor controller used by short-lived CLI processes.
// Enforcement lives in the daemon, so instead of polling it makes sure a
// daemon is alive and nudges it to reconcile with the store.
type Launcher struct {
	config LauncherConfig
	prefs  domain.PreferenceStore
	spawn  func(args ...string) (int, error)
	signal func(pid int) error
	logger *zap.Logger
	now    func() time.Time
}

// NewLauncher creates a launcher.
func NewLauncher(config LauncherConfig, prefs domain.PreferenceStore, logger *zap.Logger) *Launcher {
	return NewLauncherWithDeps(config, prefs, StartDetached, func(pid int) error {
		return syscall.Kill(pid, syscall.SIGHUP)
	}, logger)
}

// NewLauncherWithDeps creates a launcher with custom spawn and signal funcs (for testing).
func NewLauncherWithDeps(
	config LauncherConfig,
	prefs domain.PreferenceStore,
	spawn func(args ...string) (int, error),
	signal func(pid int) error,
	logger *zap.Logger,
) *Launcher {
	return &Launcher{
		config: config,
		prefs:  prefs,
		spawn:  spawn,
		signal: signal,
		logger: logger,
		now:    time.Now,
	}
}

// Alive reports whether a daemon has recorded a recent heartbeat.
func (l *Launcher) Alive(ctx context.Context) bool {
	beat, err := l.prefs.Heartbeat(ctx)
	if err != nil || beat.IsZero() {
		return false
	}
	return l.now().Sub(beat) <= l.config.StaleAfter
}

// LockPath returns the daemon lock file path.
func (l *Launcher) LockPath() string {
	return l.config.LockPath
}

// PID returns the PID recorded in the daemon lock file.
func (l *Launcher) PID() (int, error) {
	data, err := os.ReadFile(l.config.LockPath)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s", l.config.LockPath)
	}
	return pid, nil
}

// EnsureRunning starts a daemon unless one is alive, in which case it is
// asked to reconcile now.
func (l *Launcher) EnsureRunning() {
	if l.Alive(context.Background()) {
		l.kick()
		return
	}
	pid, err := l.spawn(l.config.Args...)
	if err != nil {
		l.logger.Warn("failed to start daemon", zap.Error(err))
		return
	}
	l.logger.Info("daemon started", zap.Int("pid", pid))
}

// Reevaluate asks a live daemon to reconcile. A missing daemon has
// nothing to stop.
func (l *Launcher) Reevaluate(ctx context.Context) {
	if l.Alive(ctx) {
		l.kick()
	}
}

func (l *Launcher) kick() {
	pid, err := l.PID()
	if err != nil {
		l.logger.Debug("daemon pid unavailable", zap.Error(err))
		return
	}
	if err := l.signal(pid); err != nil {
		l.logger.Debug("failed to signal daemon", zap.Int("pid", pid), zap.Error(err))
	}
}

// Ensure Launcher implements domain.MonitorController.
var _ domain.MonitorController = (*Launcher)(nil)
