//go:build integration

package integration

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/daemon"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/infra"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/metrics"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/policy"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/usecase"
)

const fakeGamePkg = "com.example.fakegame"

// observer reports whatever the test says is in front.
type observer struct {
	mu  sync.Mutex
	pkg string
}

func (o *observer) Sample(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pkg, nil
}

func (o *observer) set(pkg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pkg = pkg
}

type notification struct{ Title, Body string }

type notifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *notifier) Notify(ctx context.Context, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{title, body})
	return nil
}

func (n *notifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Title)
	}
	return out
}

type alwaysOnline struct{}

func (alwaysOnline) Online(ctx context.Context) bool { return true }

// convexServer records mutation paths it receives.
type convexServer struct {
	*httptest.Server
	mu    sync.Mutex
	paths []string
	args  []map[string]any
}

func newConvexServer() *convexServer {
	c := &convexServer{}
	c.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body struct {
			Path string         `json:"path"`
			Args map[string]any `json:"args"`
		}
		_ = sonic.Unmarshal(raw, &body)
		c.mu.Lock()
		c.paths = append(c.paths, body.Path)
		c.args = append(c.args, body.Args)
		c.mu.Unlock()
		_, _ = io.WriteString(w, `{"status":"success","value":null}`)
	}))
	return c
}

func (c *convexServer) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...)
}

// harness wires the engine the way presentd does, with a real encrypted
// store, timers and task runner, and fakes only at the desktop edge.
type harness struct {
	dir        string
	store      *infra.EncryptedStore
	wake       *infra.TimerScheduler
	runner     *daemon.TaskRunner
	convex     *convexServer
	observer   *observer
	notifier   *notifier
	catalog    *policy.Catalog
	monitor    *daemon.Monitor
	syncer     *usecase.SyncManager
	sessions   *usecase.SessionManager
	intentions *usecase.IntentionTracker
	reset      *usecase.DailyReset
	logger     *zap.Logger
}

func newHarness(dir string, fakeAppName string) *harness {
	logger := zap.NewNop()
	m := metrics.New()

	store, err := infra.OpenStore(dir)
	Expect(err).NotTo(HaveOccurred())
	Expect(store.SetSecret(infra.SecretRemoteToken, "test-token")).To(Succeed())

	h := &harness{
		dir:      dir,
		store:    store,
		wake:     infra.NewTimerScheduler(5*time.Second, logger),
		runner:   daemon.NewTaskRunner(daemon.DefaultRunnerConfig(), alwaysOnline{}, logger),
		convex:   newConvexServer(),
		observer: &observer{},
		notifier: &notifier{},
		catalog: policy.NewCatalogWithProfiles(
			policy.NewProfile("fakegame", "Fake Game", []string{fakeGamePkg}, []string{fakeAppName}),
		),
		logger: logger,
	}

	convexCfg := infra.DefaultConvexConfig()
	convexCfg.BaseURL = h.convex.URL
	convexCfg.RetryCount = 0
	remote := infra.NewConvexClient(convexCfg, store, logger)

	shield := usecase.NewEnforcer(infra.NewProcessManager(), h.catalog, h.notifier, logger)

	monitorCfg := daemon.DefaultMonitorConfig()
	monitorCfg.PollInterval = 20 * time.Millisecond
	h.monitor = daemon.NewMonitor(monitorCfg, h.observer, store, store, shield, m, logger)

	h.syncer = usecase.NewSyncManager(usecase.DefaultSyncConfig(), store, store, store, store, remote, h.runner, m, logger)
	h.sessions = usecase.NewSessionManager(store, store, h.wake, h.monitor, h.notifier, h.syncer, m, logger)
	h.intentions = usecase.NewIntentionTracker(store, h.wake, h.monitor, h.notifier, h.observer, shield, m, logger)
	h.reset = usecase.NewDailyReset(usecase.DefaultResetConfig(), h.intentions, store, h.syncer, h.runner, m, logger)
	return h
}

func (h *harness) engine() *daemon.Engine {
	cfg := daemon.DefaultEngineConfig()
	cfg.ReconcileInterval = 50 * time.Millisecond
	cfg.HeartbeatInterval = 50 * time.Millisecond
	cfg.ShutdownGrace = time.Second
	return daemon.NewEngine(cfg, h.sessions, h.intentions, h.reset, h.syncer, h.monitor, h.runner, h.wake, h.store, h.logger)
}

func (h *harness) close() {
	h.monitor.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h.runner.Shutdown(ctx)
	h.wake.Close()
	h.convex.Close()
	_ = h.store.Close()
}
