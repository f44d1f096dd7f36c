package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/usecase"
)

// EngineConfig holds engine loop configuration.
type EngineConfig struct {
	ReconcileInterval time.Duration // How often wake-ups and the monitor are re-derived from the store
	HeartbeatInterval time.Duration // How often liveness is recorded
	ShutdownGrace     time.Duration // How long in-flight tasks get on shutdown
}

// DefaultEngineConfig returns default engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ReconcileInterval: 30 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		ShutdownGrace:     5 * time.Second,
	}
}

// WakeCloser is a wake scheduler that can be shut down.
type WakeCloser interface {
	domain.WakeScheduler
	Close()
}

// Engine is the long-running daemon. It restores timers after a restart,
// keeps the monitor in step with the store (other processes may change
// it), and owns the background tasks.
type Engine struct {
	config     EngineConfig
	sessions   *usecase.SessionManager
	intentions *usecase.IntentionTracker
	reset      *usecase.DailyReset
	sync       *usecase.SyncManager
	monitor    *Monitor
	runner     *TaskRunner
	wake       WakeCloser
	prefs      domain.PreferenceStore
	logger     *zap.Logger

	kick chan struct{}
}

// NewEngine creates the engine.
func NewEngine(
	config EngineConfig,
	sessions *usecase.SessionManager,
	intentions *usecase.IntentionTracker,
	reset *usecase.DailyReset,
	syncer *usecase.SyncManager,
	monitor *Monitor,
	runner *TaskRunner,
	wake WakeCloser,
	prefs domain.PreferenceStore,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		config:     config,
		sessions:   sessions,
		intentions: intentions,
		reset:      reset,
		sync:       syncer,
		monitor:    monitor,
		runner:     runner,
		wake:       wake,
		prefs:      prefs,
		logger:     logger,
		kick:       make(chan struct{}, 1),
	}
}

// Kick requests an immediate reconcile. Requests made while one is
// pending are merged.
func (e *Engine) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Run starts the engine loop.
// This blocks until context is canceled.
func (e *Engine) Run(ctx context.Context) error {
	e.monitor.Bind(ctx)
	e.runner.Bind(ctx)

	e.logger.Info("engine started")

	// Catch up on anything missed while not running.
	e.reconcile(ctx)
	if _, err := e.reset.Run(ctx); err != nil {
		e.logger.Error("catch-up reset failed", zap.Error(err))
	}

	e.sync.SchedulePeriodic()
	e.reset.Schedule()
	e.sync.RequestDrain()
	e.heartbeat(ctx)

	reconcileTicker := time.NewTicker(e.config.ReconcileInterval)
	heartbeatTicker := time.NewTicker(e.config.HeartbeatInterval)
	defer func() {
		reconcileTicker.Stop()
		heartbeatTicker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping")
			e.shutdown()
			return ctx.Err()

		case <-reconcileTicker.C:
			e.reconcile(ctx)

		case <-e.kick:
			e.logger.Debug("reconcile requested")
			e.reconcile(ctx)

		case <-heartbeatTicker.C:
			e.heartbeat(ctx)
		}
	}
}

// reconcile re-arms wake-ups from stored state and starts or stops the
// monitor to match.
func (e *Engine) reconcile(ctx context.Context) {
	if err := e.sessions.Recover(ctx); err != nil {
		e.logger.Warn("session recovery failed", zap.Error(err))
	}
	if err := e.intentions.Recover(ctx); err != nil {
		e.logger.Warn("intention recovery failed", zap.Error(err))
	}
	e.monitor.Reevaluate(ctx)
}

func (e *Engine) heartbeat(ctx context.Context) {
	if err := e.prefs.SetHeartbeat(ctx, time.Now()); err != nil {
		e.logger.Warn("failed to update heartbeat", zap.Error(err))
	}
}

func (e *Engine) shutdown() {
	e.monitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), e.config.ShutdownGrace)
	defer cancel()
	e.runner.Shutdown(ctx)
	e.wake.Close()
}
