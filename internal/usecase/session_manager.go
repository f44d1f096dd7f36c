package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/metrics"
)

var (
	// ErrSessionNotFound is returned when a session id does not resolve.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionAlreadyActive is returned when starting while another session blocks.
	ErrSessionAlreadyActive = errors.New("another session is already active")

	// ErrInvalidSession is returned for malformed session input.
	ErrInvalidSession = errors.New("invalid session")
)

// SessionManager drives sessions through the state machine and performs
// the side effects each transition asks for.
type SessionManager struct {
	sessions domain.SessionStore
	prefs    domain.PreferenceStore
	wake     domain.WakeScheduler
	monitor  domain.MonitorController
	notifier domain.Notifier
	sync     *SyncManager
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	mu sync.Mutex
}

// NewSessionManager creates a session manager.
func NewSessionManager(
	sessions domain.SessionStore,
	prefs domain.PreferenceStore,
	wake domain.WakeScheduler,
	monitor domain.MonitorController,
	notifier domain.Notifier,
	syncer *SyncManager,
	m *metrics.Metrics,
	logger *zap.Logger,
) *SessionManager {
	return &SessionManager{
		sessions: sessions,
		prefs:    prefs,
		wake:     wake,
		monitor:  monitor,
		notifier: notifier,
		sync:     syncer,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateAndStart creates a session and starts it immediately.
func (m *SessionManager) CreateAndStart(ctx context.Context, name string, goalMinutes int, blocked []string, beastMode bool) (*domain.Session, error) {
	name = strings.TrimSpace(name)
	if goalMinutes < 1 {
		return nil, fmt.Errorf("%w: goal must be at least 1 minute", ErrInvalidSession)
	}
	blocked = uniquePackages(blocked)
	if len(blocked) == 0 {
		return nil, fmt.Errorf("%w: at least one app must be blocked", ErrInvalidSession)
	}
	if name == "" {
		name = "Focus session"
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	active, err := m.sessions.ActiveSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check active session: %w", err)
	}
	if active != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionAlreadyActive, active.ID)
	}

	now := m.now()
	s := domain.Session{
		ID:              uuid.NewString(),
		Name:            name,
		GoalMinutes:     goalMinutes,
		BeastMode:       beastMode,
		State:           domain.StateIdle,
		BlockedPackages: blocked,
		CreatedAt:       now,
	}

	t, err := Apply(s, domain.ActionStart, now)
	if err != nil {
		return nil, err
	}
	s = t.Stamp(s, now)

	if err := m.persist(ctx, s, t.Action, now); err != nil {
		return nil, err
	}
	if err := m.prefs.SetActiveSessionID(ctx, s.ID); err != nil {
		return nil, fmt.Errorf("failed to set active session: %w", err)
	}

	m.armGoal(s)
	m.monitor.EnsureRunning()
	m.metrics.Transitions.WithLabelValues(string(domain.ActionStart), "ok").Inc()

	m.logger.Info("session started",
		zap.String("session", s.ID),
		zap.Int("goal_minutes", s.GoalMinutes),
		zap.Bool("beast_mode", s.BeastMode),
		zap.Strings("blocked", s.BlockedPackages))
	return &s, nil
}

// Cancel ends a session within CancelWindow of its start.
func (m *SessionManager) Cancel(ctx context.Context, id string) (*domain.Session, error) {
	return m.transition(ctx, id, domain.ActionCancel)
}

// GiveUp abandons a running session.
func (m *SessionManager) GiveUp(ctx context.Context, id string) (*domain.Session, error) {
	return m.transition(ctx, id, domain.ActionGiveUp)
}

// GoalReached marks the goal duration as elapsed.
func (m *SessionManager) GoalReached(ctx context.Context, id string) (*domain.Session, error) {
	return m.transition(ctx, id, domain.ActionGoalReached)
}

// Complete closes a session whose goal was reached and pays the reward.
func (m *SessionManager) Complete(ctx context.Context, id string) (*domain.Session, error) {
	return m.transition(ctx, id, domain.ActionComplete)
}

func (m *SessionManager) transition(ctx context.Context, id string, intent domain.ActionTag) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.sessions.GetSession(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		m.logger.Warn("transition on missing session",
			zap.String("session", id),
			zap.String("action", string(intent)))
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	now := m.now()
	t, err := Apply(*s, intent, now)
	if err != nil {
		m.metrics.Transitions.WithLabelValues(string(intent), "rejected").Inc()
		return nil, err
	}
	next := t.Stamp(*s, now)

	var reward domain.Reward
	if t.RewardEligible {
		reward = RewardFor(next.GoalMinutes)
		next.EarnedXP = reward.XP
		next.EarnedCoins = reward.Coins
	}

	if err := m.persist(ctx, next, t.Action, now); err != nil {
		return nil, err
	}
	m.metrics.Transitions.WithLabelValues(string(intent), "ok").Inc()
	m.logger.Info("session transition",
		zap.String("session", id),
		zap.String("from", string(t.From)),
		zap.String("to", string(t.To)))

	m.applyEffects(ctx, t, next, reward)
	return &next, nil
}

// applyEffects runs side effects in a fixed order: timer, reward,
// active pointer, monitor, sync.
func (m *SessionManager) applyEffects(ctx context.Context, t Transition, s domain.Session, reward domain.Reward) {
	if t.CancelTimer {
		m.wake.Cancel(domain.GoalWakeKey(s.ID))
	}

	if t.RewardEligible {
		if err := m.prefs.AddRewards(ctx, reward); err != nil {
			m.logger.Error("failed to add rewards", zap.String("session", s.ID), zap.Error(err))
		} else {
			m.metrics.Rewards.Add(float64(reward.XP))
		}
	}

	if t.ClearActive {
		if err := m.prefs.SetActiveSessionID(ctx, ""); err != nil {
			m.logger.Error("failed to clear active session", zap.Error(err))
		}
	}

	if t.ReevaluateMonitor {
		m.monitor.Reevaluate(ctx)
	}

	if t.Sync {
		if err := m.sync.EnqueueSession(ctx, s); err != nil {
			m.logger.Error("failed to queue session sync", zap.String("session", s.ID), zap.Error(err))
			return
		}
		m.sync.RequestDrain()
	}
}

func (m *SessionManager) persist(ctx context.Context, s domain.Session, action domain.ActionTag, at time.Time) error {
	if err := m.sessions.SaveSession(ctx, s); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	a := domain.SessionAction{
		ID:        ulid.Make().String(),
		SessionID: s.ID,
		Action:    action,
		At:        at,
	}
	if err := m.sessions.AppendAction(ctx, a); err != nil {
		return fmt.Errorf("failed to record %s: %w", action, err)
	}
	return nil
}

func (m *SessionManager) armGoal(s domain.Session) {
	id := s.ID
	m.wake.Schedule(domain.GoalWakeKey(id), s.GoalAt(), func(ctx context.Context) {
		m.onGoalWake(ctx, id)
	})
}

// onGoalWake handles the goal timer firing.
func (m *SessionManager) onGoalWake(ctx context.Context, id string) {
	s, err := m.GoalReached(ctx, id)
	if err != nil {
		m.logger.Debug("goal wake ignored", zap.String("session", id), zap.Error(err))
		return
	}
	reward := RewardFor(s.GoalMinutes)
	body := fmt.Sprintf("%s is done. Complete it to earn +%d XP.", s.Name, reward.XP)
	if err := m.notifier.Notify(ctx, "Goal reached!", body); err != nil {
		m.logger.Warn("failed to notify goal reached", zap.Error(err))
	}
}

// Recover re-arms the goal timer of the active session, or fires it if
// the goal time passed while nothing was running.
func (m *SessionManager) Recover(ctx context.Context) error {
	s, err := m.sessions.ActiveSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active session: %w", err)
	}
	if s == nil {
		return nil
	}
	if s.State != domain.StateActive {
		m.monitor.EnsureRunning()
		return nil
	}
	if !m.now().Before(s.GoalAt()) {
		m.onGoalWake(ctx, s.ID)
		return nil
	}
	m.armGoal(*s)
	m.monitor.EnsureRunning()
	return nil
}

// Active returns the blocking session, or nil.
func (m *SessionManager) Active(ctx context.Context) (*domain.Session, error) {
	return m.sessions.ActiveSession(ctx)
}

// Get returns a session by id.
func (m *SessionManager) Get(ctx context.Context, id string) (*domain.Session, error) {
	s, err := m.sessions.GetSession(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, err
}

// Actions returns the audit log of a session.
func (m *SessionManager) Actions(ctx context.Context, id string) ([]domain.SessionAction, error) {
	return m.sessions.ListActions(ctx, id)
}

func uniquePackages(pkgs []string) []string {
	seen := make(map[string]bool, len(pkgs))
	out := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
