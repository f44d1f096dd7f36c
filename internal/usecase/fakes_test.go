package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/metrics"
)

// memStore is an in-memory implementation of every store interface.
type memStore struct {
	mu sync.Mutex

	sessions   map[string]domain.Session
	actions    []domain.SessionAction
	intentions map[string]domain.Intention
	queue      []domain.SyncQueueItem
	nextItemID int64

	activeID  string
	totals    domain.Reward
	freeze    domain.StreakFreeze
	heartbeat time.Time

	failSaveIntention error
}

func newMemStore() *memStore {
	return &memStore{
		sessions:   make(map[string]domain.Session),
		intentions: make(map[string]domain.Intention),
	}
}

func copySession(s domain.Session) *domain.Session {
	s.BlockedPackages = append([]string(nil), s.BlockedPackages...)
	return &s
}

func (m *memStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return copySession(s), nil
}

func (m *memStore) SaveSession(ctx context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *copySession(s)
	return nil
}

func (m *memStore) AppendAction(ctx context.Context, a domain.SessionAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, a)
	return nil
}

func (m *memStore) ListActions(ctx context.Context, sessionID string) ([]domain.SessionAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SessionAction
	for _, a := range m.actions {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ActiveSession(ctx context.Context) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.State.Blocking() {
			return copySession(s), nil
		}
	}
	return nil, nil
}

func (m *memStore) SessionsStartedBetween(ctx context.Context, from, to time.Time) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Session
	for _, s := range m.sessions {
		if s.StartedAt != nil && !s.StartedAt.Before(from) && s.StartedAt.Before(to) {
			out = append(out, *copySession(s))
		}
	}
	return out, nil
}

func (m *memStore) GetIntention(ctx context.Context, id string) (*domain.Intention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.intentions[id]
	if !ok {
		return nil, fmt.Errorf("intention %s: %w", id, domain.ErrNotFound)
	}
	return &in, nil
}

func (m *memStore) GetIntentionByPackage(ctx context.Context, pkg string) (*domain.Intention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, in := range m.intentions {
		if in.PackageName == pkg {
			return &in, nil
		}
	}
	return nil, fmt.Errorf("intention for %s: %w", pkg, domain.ErrNotFound)
}

func (m *memStore) ListIntentions(ctx context.Context) ([]domain.Intention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Intention, 0, len(m.intentions))
	for _, in := range m.intentions {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PackageName < out[j].PackageName })
	return out, nil
}

func (m *memStore) SaveIntention(ctx context.Context, in domain.Intention) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaveIntention != nil {
		return m.failSaveIntention
	}
	for id, other := range m.intentions {
		if id != in.ID && other.PackageName == in.PackageName {
			return domain.ErrDuplicatePackage
		}
	}
	m.intentions[in.ID] = in
	return nil
}

func (m *memStore) DeleteIntention(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.intentions[id]; !ok {
		return fmt.Errorf("intention %s: %w", id, domain.ErrNotFound)
	}
	delete(m.intentions, id)
	return nil
}

func (m *memStore) CountIntentions(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.intentions), nil
}

func (m *memStore) BlockedIntentions(ctx context.Context) ([]domain.Intention, error) {
	all, _ := m.ListIntentions(ctx)
	var out []domain.Intention
	for _, in := range all {
		if !in.CurrentlyOpen {
			out = append(out, in)
		}
	}
	return out, nil
}

func (m *memStore) Enqueue(ctx context.Context, item domain.SyncQueueItem) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextItemID++
	item.ID = m.nextItemID
	m.queue = append(m.queue, item)
	return item.ID, nil
}

func (m *memStore) PendingItems(ctx context.Context) ([]domain.SyncQueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SyncQueueItem(nil), m.queue...), nil
}

func (m *memStore) DeleteItem(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.queue {
		if it.ID == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memStore) IncrementRetry(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.queue {
		if m.queue[i].ID == id {
			m.queue[i].RetryCount++
		}
	}
	return nil
}

func (m *memStore) PurgeExceeding(ctx context.Context, maxRetries int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.queue[:0]
	var purged int64
	for _, it := range m.queue {
		if it.RetryCount > maxRetries {
			purged++
			continue
		}
		kept = append(kept, it)
	}
	m.queue = kept
	return purged, nil
}

func (m *memStore) CountPending(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue), nil
}

func (m *memStore) ActiveSessionID(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID, nil
}

func (m *memStore) SetActiveSessionID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeID = id
	return nil
}

func (m *memStore) AddRewards(ctx context.Context, r domain.Reward) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals.XP += r.XP
	m.totals.Coins += r.Coins
	return nil
}

func (m *memStore) Totals(ctx context.Context) (domain.Reward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals, nil
}

func (m *memStore) StreakFreeze(ctx context.Context) (domain.StreakFreeze, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.freeze, nil
}

func (m *memStore) SetStreakFreeze(ctx context.Context, f domain.StreakFreeze) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.freeze = f
	return nil
}

func (m *memStore) Heartbeat(ctx context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heartbeat, nil
}

func (m *memStore) SetHeartbeat(ctx context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heartbeat = at
	return nil
}

func (m *memStore) intention(id string) domain.Intention {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.intentions[id]
}

func (m *memStore) session(id string) domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

func (m *memStore) queued() []domain.SyncQueueItem {
	items, _ := m.PendingItems(context.Background())
	return items
}

// fakeWake records scheduled wake-ups; tests fire them by hand.
type fakeWake struct {
	mu      sync.Mutex
	pending map[string]wakeEntry
}

type wakeEntry struct {
	at time.Time
	fn func(ctx context.Context)
}

func newFakeWake() *fakeWake {
	return &fakeWake{pending: make(map[string]wakeEntry)}
}

func (w *fakeWake) Schedule(key domain.WakeKey, at time.Time, fn func(ctx context.Context)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[key.String()] = wakeEntry{at: at, fn: fn}
}

func (w *fakeWake) Cancel(key domain.WakeKey) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, key.String())
}

func (w *fakeWake) Has(key domain.WakeKey) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.pending[key.String()]
	return ok
}

func (w *fakeWake) At(key domain.WakeKey) time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending[key.String()].at
}

// Fire runs and removes a pending wake-up. It reports whether one existed.
func (w *fakeWake) Fire(key domain.WakeKey) bool {
	w.mu.Lock()
	e, ok := w.pending[key.String()]
	delete(w.pending, key.String())
	w.mu.Unlock()
	if ok {
		e.fn(context.Background())
	}
	return ok
}

type fakeMonitor struct {
	mu          sync.Mutex
	ensureCalls int
	reevalCalls int
}

func (m *fakeMonitor) EnsureRunning() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureCalls++
}

func (m *fakeMonitor) Reevaluate(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reevalCalls++
}

type notification struct {
	title string
	body  string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

func (n *fakeNotifier) Notify(ctx context.Context, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{title: title, body: body})
	return n.err
}

func (n *fakeNotifier) bodies() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.body)
	}
	return out
}

type fakeObserver struct {
	mu  sync.Mutex
	pkg string
	err error
}

func (o *fakeObserver) Sample(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pkg, o.err
}

func (o *fakeObserver) set(pkg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pkg = pkg
}

type fakeShield struct {
	mu    sync.Mutex
	shown []domain.ShieldRequest
}

func (s *fakeShield) Show(ctx context.Context, req domain.ShieldRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = append(s.shown, req)
	return nil
}

func (s *fakeShield) requests() []domain.ShieldRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ShieldRequest(nil), s.shown...)
}

// fakeRemote delivers everything unless fail says otherwise.
type fakeRemote struct {
	mu        sync.Mutex
	authed    bool
	fail      func(kind domain.SyncType, payload []byte) error
	delivered []string
}

func (r *fakeRemote) Authenticated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.authed
}

func (r *fakeRemote) Deliver(ctx context.Context, kind domain.SyncType, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		if err := r.fail(kind, payload); err != nil {
			return err
		}
	}
	r.delivered = append(r.delivered, string(kind))
	return nil
}

var errRemoteDown = errors.New("remote unavailable")

// fakeTasks records scheduled tasks without running them.
type fakeTasks struct {
	mu       sync.Mutex
	periodic map[string]periodicEntry
	once     map[string]func(ctx context.Context) error
	onceHits map[string]int
}

type periodicEntry struct {
	initialDelay time.Duration
	interval     time.Duration
	constraints  domain.TaskConstraints
	fn           func(ctx context.Context) error
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{
		periodic: make(map[string]periodicEntry),
		once:     make(map[string]func(ctx context.Context) error),
		onceHits: make(map[string]int),
	}
}

func (f *fakeTasks) SchedulePeriodic(name string, initialDelay, interval time.Duration, c domain.TaskConstraints, fn func(ctx context.Context) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.periodic[name] = periodicEntry{initialDelay: initialDelay, interval: interval, constraints: c, fn: fn}
}

func (f *fakeTasks) ScheduleOnce(name string, c domain.TaskConstraints, fn func(ctx context.Context) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.once[name] = fn
	f.onceHits[name]++
}

func (f *fakeTasks) requested(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onceHits[name]
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// testEnv wires the managers to fakes.
type testEnv struct {
	store    *memStore
	wake     *fakeWake
	monitor  *fakeMonitor
	notifier *fakeNotifier
	observer *fakeObserver
	shield   *fakeShield
	remote   *fakeRemote
	tasks    *fakeTasks
	clock    *fakeClock
	metrics  *metrics.Metrics

	sync       *SyncManager
	sessions   *SessionManager
	intentions *IntentionTracker
	reset      *DailyReset
}

// 2026-10-12 is a Monday.
var testMonday = time.Date(2026, 10, 12, 9, 0, 0, 0, time.Local)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		store:    newMemStore(),
		wake:     newFakeWake(),
		monitor:  &fakeMonitor{},
		notifier: &fakeNotifier{},
		observer: &fakeObserver{},
		shield:   &fakeShield{},
		remote:   &fakeRemote{authed: true},
		tasks:    newFakeTasks(),
		clock:    newFakeClock(testMonday.AddDate(0, 0, 1)),
		metrics:  metrics.New(),
	}
	logger := zap.NewNop()

	e.sync = NewSyncManager(DefaultSyncConfig(), e.store, e.store, e.store, e.store, e.remote, e.tasks, e.metrics, logger)
	e.sync.now = e.clock.Now
	e.sessions = NewSessionManager(e.store, e.store, e.wake, e.monitor, e.notifier, e.sync, e.metrics, logger)
	e.sessions.now = e.clock.Now
	e.intentions = NewIntentionTracker(e.store, e.wake, e.monitor, e.notifier, e.observer, e.shield, e.metrics, logger)
	e.intentions.now = e.clock.Now
	e.reset = NewDailyReset(DefaultResetConfig(), e.intentions, e.store, e.sync, e.tasks, e.metrics, logger)
	e.reset.now = e.clock.Now
	return e
}

func queuedTypes(items []domain.SyncQueueItem) string {
	types := make([]string, 0, len(items))
	for _, it := range items {
		types = append(types, string(it.Type))
	}
	return strings.Join(types, ",")
}
