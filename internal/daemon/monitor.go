// Package daemon implements the long-running parts of the engine: the
// foreground monitor, the background task runner and the engine loop.
package daemon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/metrics"
)

// MonitorConfig holds foreground monitor configuration.
type MonitorConfig struct {
	PollInterval   time.Duration // How often the foreground app is sampled
	DebounceWindow time.Duration // Minimum gap between shields for the same app
	HostAppID      string        // Our own identifier, never shielded
}

// DefaultMonitorConfig returns default monitor configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		PollInterval:   time.Second,
		DebounceWindow: 2 * time.Second,
		HostAppID:      "presentd",
	}
}

// Monitor polls the foreground app and shields blocked ones.
// It runs only while a session is active or an intention exists.
type Monitor struct {
	config     MonitorConfig
	observer   domain.ForegroundObserver
	sessions   domain.SessionStore
	intentions domain.IntentionStore
	shield     domain.ShieldPresenter
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time

	mu     sync.Mutex
	parent context.Context
	cancel context.CancelFunc
	done   chan struct{}

	tickMu         sync.Mutex
	lastForeground string
	lastBlockedPkg string
	lastBlockedAt  time.Time
}

// NewMonitor creates a stopped monitor.
func NewMonitor(
	config MonitorConfig,
	observer domain.ForegroundObserver,
	sessions domain.SessionStore,
	intentions domain.IntentionStore,
	shield domain.ShieldPresenter,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Monitor {
	return &Monitor{
		config:     config,
		observer:   observer,
		sessions:   sessions,
		intentions: intentions,
		shield:     shield,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
		parent:     context.Background(),
	}
}

// Bind ties future poll loops to ctx, so they end with it.
func (m *Monitor) Bind(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parent = ctx
}

// EnsureRunning starts the poll loop if it is not running.
func (m *Monitor) EnsureRunning() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil || m.parent.Err() != nil {
		return
	}
	ctx, cancel := context.WithCancel(m.parent)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx, m.done)

	m.metrics.MonitorRunning.Set(1)
	m.logger.Info("foreground monitor started", zap.Duration("interval", m.config.PollInterval))
}

// Stop ends the poll loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.cancel == nil {
		m.mu.Unlock()
		return
	}
	m.cancel()
	done := m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	<-done
	m.metrics.MonitorRunning.Set(0)
	m.logger.Info("foreground monitor stopped")
}

// Running reports whether the poll loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// Reevaluate runs the monitor only while there is something to enforce.
// On store errors the current state is kept.
func (m *Monitor) Reevaluate(ctx context.Context) {
	active, err := m.sessions.ActiveSession(ctx)
	if err != nil {
		m.logger.Warn("monitor reevaluation skipped", zap.Error(err))
		return
	}
	count, err := m.intentions.CountIntentions(ctx)
	if err != nil {
		m.logger.Warn("monitor reevaluation skipped", zap.Error(err))
		return
	}

	if active == nil && count == 0 {
		m.Stop()
		return
	}
	m.EnsureRunning()
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick takes one foreground sample and shields it if blocked. It returns
// the request that was shown, or nil. Errors never escape a tick.
func (m *Monitor) Tick(ctx context.Context) *domain.ShieldRequest {
	m.metrics.Polls.Inc()

	pkg, err := m.observer.Sample(ctx)
	if err != nil {
		m.metrics.PollErrors.Inc()
		m.logger.Debug("foreground sample failed", zap.Error(err))
		return nil
	}

	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	if pkg == "" {
		pkg = m.lastForeground
	} else {
		m.lastForeground = pkg
	}
	if pkg == "" || pkg == m.config.HostAppID {
		return nil
	}

	req, err := m.classify(ctx, pkg)
	if err != nil {
		m.metrics.PollErrors.Inc()
		m.logger.Warn("failed to compute blocked set", zap.Error(err))
		return nil
	}
	if req == nil {
		return nil
	}

	now := m.now()
	if pkg == m.lastBlockedPkg && now.Sub(m.lastBlockedAt) <= m.config.DebounceWindow {
		m.metrics.ShieldsDebounced.Inc()
		return nil
	}
	m.lastBlockedPkg = pkg
	m.lastBlockedAt = now

	m.logger.Info("shielding app",
		zap.String("package", pkg),
		zap.String("shield", string(req.ShieldType)))
	if err := m.shield.Show(ctx, *req); err != nil {
		m.logger.Warn("shield failed", zap.String("package", pkg), zap.Error(err))
	}
	m.metrics.ShieldsShown.WithLabelValues(string(req.ShieldType)).Inc()
	return req
}

// classify returns the shield for pkg, or nil if pkg is allowed.
// An active session takes precedence over intentions.
func (m *Monitor) classify(ctx context.Context, pkg string) (*domain.ShieldRequest, error) {
	active, err := m.sessions.ActiveSession(ctx)
	if err != nil {
		return nil, err
	}
	if active != nil && active.State.Blocking() && active.Blocks(pkg) {
		kind := domain.ShieldSession
		if active.State == domain.StateGoalReached {
			kind = domain.ShieldGoalReached
		}
		return &domain.ShieldRequest{
			BlockedPackage: pkg,
			ShieldType:     kind,
			SessionID:      active.ID,
		}, nil
	}

	blocked, err := m.intentions.BlockedIntentions(ctx)
	if err != nil {
		return nil, err
	}
	for _, in := range blocked {
		if in.PackageName == pkg {
			return &domain.ShieldRequest{
				BlockedPackage: pkg,
				ShieldType:     domain.ShieldIntention,
				IntentionID:    in.ID,
				AppName:        in.AppName,
			}, nil
		}
	}
	return nil, nil
}

// Ensure Monitor implements domain.MonitorController.
var _ domain.MonitorController = (*Monitor)(nil)
