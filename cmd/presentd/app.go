package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/config"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/daemon"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/infra"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/logging"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/metrics"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/policy"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/usecase"
)

const (
	lockFile     = "presentd.pid"
	probeTimeout = 3 * time.Second
	cliGrace     = 5 * time.Second
)

// app is the composition root. Every component is built once here and
// shared, both by the daemon and by one-shot CLI commands.
type app struct {
	cfg     *config.Config
	mode    *infra.ExecModeConfig
	logger  *zap.Logger
	store   *infra.EncryptedStore
	metrics *metrics.Metrics
	catalog *policy.Catalog

	wake     *infra.TimerScheduler
	runner   *daemon.TaskRunner
	monitor  *daemon.Monitor // daemon process only
	launcher *daemon.Launcher

	remote     *infra.ConvexClient
	syncer     *usecase.SyncManager
	sessions   *usecase.SessionManager
	intentions *usecase.IntentionTracker
	reset      *usecase.DailyReset
}

func newApp(forDaemon bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	mode := infra.DetectExecMode(cfg.DataDir)
	if err := os.MkdirAll(mode.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	logCfg := logging.Config{Level: cfg.Log.Level, Development: cfg.Log.Development}
	if forDaemon {
		logCfg.OutputPath = mode.LogPath
	} else if !verbose {
		logCfg.Level = "warn"
	}
	logger := logging.NewOrFallback(logCfg)

	store, err := infra.OpenStore(mode.DataDir)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	pm := infra.NewProcessManager()
	catalog := policy.NewCatalog()
	notifier := infra.NewDesktopNotifier("presentd", logger.Named("notify"))
	observer := infra.NewForegroundObserver(pm)
	shield := usecase.NewEnforcer(pm, catalog, notifier, logger.Named("shield"))

	wake := infra.NewTimerScheduler(infra.DefaultHandlerTimeout, logger.Named("wake"))
	probe := infra.NewDialProbe(cfg.Sync.ConvexURL, probeTimeout)
	runner := daemon.NewTaskRunner(daemon.DefaultRunnerConfig(), probe, logger.Named("tasks"))

	convexCfg := infra.DefaultConvexConfig()
	convexCfg.BaseURL = cfg.Sync.ConvexURL
	convexCfg.RateLimit = cfg.Sync.RateLimit
	remote := infra.NewConvexClient(convexCfg, store, logger.Named("remote"))

	launcher := daemon.NewLauncher(daemon.LauncherConfig{
		LockPath:   filepath.Join(mode.DataDir, lockFile),
		StaleAfter: 2 * cfg.HeartbeatInterval,
		Args:       []string{"--data-dir", mode.DataDir},
	}, store, logger.Named("launcher"))

	a := &app{
		cfg:      cfg,
		mode:     mode,
		logger:   logger,
		store:    store,
		metrics:  m,
		catalog:  catalog,
		wake:     wake,
		runner:   runner,
		launcher: launcher,
		remote:   remote,
	}

	var controller domain.MonitorController = launcher
	if forDaemon {
		monCfg := daemon.DefaultMonitorConfig()
		monCfg.PollInterval = cfg.Monitor.PollInterval
		monCfg.DebounceWindow = cfg.Monitor.Debounce
		monCfg.HostAppID = cfg.HostAppID
		a.monitor = daemon.NewMonitor(monCfg, observer, store, store, shield, m, logger.Named("monitor"))
		controller = a.monitor
	}

	syncCfg := usecase.DefaultSyncConfig()
	syncCfg.Interval = cfg.Sync.Interval
	syncCfg.DeliveryTimeout = cfg.Sync.Timeout
	a.syncer = usecase.NewSyncManager(syncCfg, store, store, store, store, remote, runner, m, logger.Named("sync"))

	a.sessions = usecase.NewSessionManager(store, store, wake, controller, notifier, a.syncer, m, logger.Named("session"))
	a.intentions = usecase.NewIntentionTracker(store, wake, controller, notifier, observer, shield, m, logger.Named("intention"))

	resetCfg := usecase.DefaultResetConfig()
	resetCfg.GrantWeekday = cfg.GrantWeekday()
	resetCfg.Grace = cfg.Reset.Grace
	a.reset = usecase.NewDailyReset(resetCfg, a.intentions, store, a.syncer, runner, m, logger.Named("reset"))

	return a, nil
}

// catchUp applies anything that came due while no daemon was running,
// so one-shot commands act on current state.
func (a *app) catchUp(ctx context.Context) {
	if _, err := a.reset.Run(ctx); err != nil {
		a.logger.Warn("catch-up reset failed", zap.Error(err))
	}
	if err := a.sessions.Recover(ctx); err != nil {
		a.logger.Warn("session recovery failed", zap.Error(err))
	}
	if err := a.intentions.Recover(ctx); err != nil {
		a.logger.Warn("intention recovery failed", zap.Error(err))
	}
}

// engine builds the daemon loop. Only valid for a daemon app.
func (a *app) engine() *daemon.Engine {
	engCfg := daemon.DefaultEngineConfig()
	engCfg.ReconcileInterval = a.cfg.ReconcileInterval
	engCfg.HeartbeatInterval = a.cfg.HeartbeatInterval
	return daemon.NewEngine(engCfg, a.sessions, a.intentions, a.reset, a.syncer, a.monitor, a.runner, a.wake, a.store, a.logger.Named("engine"))
}

// close gives queued one-shot work a short grace period, then releases
// everything.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), cliGrace)
	defer cancel()
	a.runner.Shutdown(ctx)
	a.wake.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// withApp runs fn against a CLI app and closes it afterwards.
func withApp(fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()
	return fn(ctx, a)
}
