package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/metrics"
)

const (
	taskSyncPeriodic  = "sync_periodic"
	taskSyncImmediate = "sync_immediate"
)

// SyncConfig holds sync queue configuration.
type SyncConfig struct {
	Interval        time.Duration // Periodic drain interval
	DeliveryTimeout time.Duration // Upper bound for a single delivery
}

// DefaultSyncConfig returns default sync configuration.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Interval:        15 * time.Minute,
		DeliveryTimeout: 20 * time.Second,
	}
}

// DrainReport summarizes one drain pass.
type DrainReport struct {
	Delivered int
	Failed    int
	Evicted   int64
}

type sessionPayload struct {
	LocalSessionID      string `json:"localSessionId"`
	Name                string `json:"name"`
	GoalDurationMinutes int    `json:"goalDurationMinutes"`
	State               string `json:"state"`
	EarnedXP            int    `json:"earnedXp"`
	StartedAt           int64  `json:"startedAt"`
	EndedAt             *int64 `json:"endedAt,omitempty"`
}

type dailyStatsPayload struct {
	Date              string `json:"date"`
	TotalXP           int    `json:"totalXp"`
	TotalCoins        int    `json:"totalCoins"`
	MaxStreak         int    `json:"maxStreak"`
	SessionsCompleted int    `json:"sessionsCompleted"`
	TotalFocusMinutes int    `json:"totalFocusMinutes"`
}

type intentionSnapshot struct {
	PackageName        string `json:"packageName"`
	AppName            string `json:"appName"`
	Streak             int    `json:"streak"`
	AllowedOpensPerDay int    `json:"allowedOpensPerDay"`
	TotalOpensToday    int    `json:"totalOpensToday"`
}

type intentionsPayload struct {
	Intentions []intentionSnapshot `json:"intentions"`
}

// SyncManager owns the outbox: it turns domain records into queued
// payloads and drains them to the remote store.
type SyncManager struct {
	config     SyncConfig
	queue      domain.SyncQueueStore
	sessions   domain.SessionStore
	intentions domain.IntentionStore
	prefs      domain.PreferenceStore
	remote     domain.RemoteSyncer
	tasks      domain.BackgroundTaskScheduler
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time

	drainMu sync.Mutex
}

// NewSyncManager creates a sync manager.
func NewSyncManager(
	config SyncConfig,
	queue domain.SyncQueueStore,
	sessions domain.SessionStore,
	intentions domain.IntentionStore,
	prefs domain.PreferenceStore,
	remote domain.RemoteSyncer,
	tasks domain.BackgroundTaskScheduler,
	m *metrics.Metrics,
	logger *zap.Logger,
) *SyncManager {
	return &SyncManager{
		config:     config,
		queue:      queue,
		sessions:   sessions,
		intentions: intentions,
		prefs:      prefs,
		remote:     remote,
		tasks:      tasks,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// EnqueueSession queues the session's current record.
func (m *SyncManager) EnqueueSession(ctx context.Context, s domain.Session) error {
	p := sessionPayload{
		LocalSessionID:      s.ID,
		Name:                s.Name,
		GoalDurationMinutes: s.GoalMinutes,
		State:               string(s.State),
		EarnedXP:            s.EarnedXP,
	}
	if s.StartedAt != nil {
		p.StartedAt = s.StartedAt.UnixMilli()
	}
	if s.EndedAt != nil {
		ended := s.EndedAt.UnixMilli()
		p.EndedAt = &ended
	}
	return m.enqueue(ctx, domain.SyncSession, p)
}

// EnqueueDailyStats queues the aggregate for the local calendar day of day.
func (m *SyncManager) EnqueueDailyStats(ctx context.Context, day time.Time) error {
	from := startOfDay(day)
	sessions, err := m.sessions.SessionsStartedBetween(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}

	p := dailyStatsPayload{Date: from.Format(dateLayout)}
	for _, s := range sessions {
		if s.State == domain.StateCompleted {
			p.SessionsCompleted++
			p.TotalFocusMinutes += s.GoalMinutes
		}
	}

	totals, err := m.prefs.Totals(ctx)
	if err != nil {
		return fmt.Errorf("failed to load totals: %w", err)
	}
	p.TotalXP = totals.XP
	p.TotalCoins = totals.Coins

	intentions, err := m.intentions.ListIntentions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load intentions: %w", err)
	}
	for _, in := range intentions {
		if in.Streak > p.MaxStreak {
			p.MaxStreak = in.Streak
		}
	}

	return m.enqueue(ctx, domain.SyncDailyStats, p)
}

// EnqueueIntentions queues a snapshot of every intention.
func (m *SyncManager) EnqueueIntentions(ctx context.Context) error {
	intentions, err := m.intentions.ListIntentions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load intentions: %w", err)
	}
	p := intentionsPayload{Intentions: make([]intentionSnapshot, 0, len(intentions))}
	for _, in := range intentions {
		p.Intentions = append(p.Intentions, intentionSnapshot{
			PackageName:        in.PackageName,
			AppName:            in.AppName,
			Streak:             in.Streak,
			AllowedOpensPerDay: in.AllowedOpensPerDay,
			TotalOpensToday:    in.TotalOpensToday,
		})
	}
	return m.enqueue(ctx, domain.SyncIntentions, p)
}

func (m *SyncManager) enqueue(ctx context.Context, kind domain.SyncType, payload any) error {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}
	id, err := m.queue.Enqueue(ctx, domain.SyncQueueItem{
		Type:      kind,
		Payload:   data,
		CreatedAt: m.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", kind, err)
	}
	m.metrics.SyncEnqueued.WithLabelValues(string(kind)).Inc()
	m.logger.Debug("sync item queued", zap.Int64("id", id), zap.String("type", string(kind)))
	return nil
}

// Drain delivers pending items in creation order. A failing item is
// counted and skipped so later items still go out. Without a remote
// identity it does nothing.
func (m *SyncManager) Drain(ctx context.Context) (DrainReport, error) {
	m.drainMu.Lock()
	defer m.drainMu.Unlock()

	var report DrainReport
	if !m.remote.Authenticated() {
		m.logger.Debug("sync skipped: not authenticated")
		return report, nil
	}

	evicted, err := m.queue.PurgeExceeding(ctx, domain.MaxSyncRetries)
	if err != nil {
		return report, fmt.Errorf("failed to purge sync queue: %w", err)
	}
	report.Evicted = evicted
	if evicted > 0 {
		m.metrics.SyncEvicted.Add(float64(evicted))
		m.logger.Warn("evicted sync items over retry ceiling", zap.Int64("count", evicted))
	}

	items, err := m.queue.PendingItems(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load sync queue: %w", err)
	}

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if err := m.deliver(ctx, item); err != nil {
			report.Failed++
			m.metrics.SyncFailed.WithLabelValues(string(item.Type)).Inc()
			m.logger.Warn("sync delivery failed",
				zap.Int64("id", item.ID),
				zap.String("type", string(item.Type)),
				zap.Int("retry", item.RetryCount+1),
				zap.Error(err))
			if err := m.queue.IncrementRetry(ctx, item.ID); err != nil {
				m.logger.Error("failed to record sync retry", zap.Int64("id", item.ID), zap.Error(err))
			}
			continue
		}
		if err := m.queue.DeleteItem(ctx, item.ID); err != nil {
			m.logger.Error("failed to remove delivered item", zap.Int64("id", item.ID), zap.Error(err))
		}
		report.Delivered++
		m.metrics.SyncDelivered.WithLabelValues(string(item.Type)).Inc()
	}

	if pending, err := m.queue.CountPending(ctx); err == nil {
		m.metrics.SyncPending.Set(float64(pending))
	}

	if report.Delivered > 0 || report.Failed > 0 {
		m.logger.Info("sync drain completed",
			zap.Int("delivered", report.Delivered),
			zap.Int("failed", report.Failed))
	}
	return report, ctx.Err()
}

func (m *SyncManager) deliver(ctx context.Context, item domain.SyncQueueItem) error {
	ctx, cancel := context.WithTimeout(ctx, m.config.DeliveryTimeout)
	defer cancel()
	return m.remote.Deliver(ctx, item.Type, item.Payload)
}

// RequestDrain asks for a network-constrained drain as soon as possible.
func (m *SyncManager) RequestDrain() {
	m.tasks.ScheduleOnce(taskSyncImmediate, domain.TaskConstraints{RequireNetwork: true}, m.drainTask)
}

// SchedulePeriodic registers the recurring drain.
func (m *SyncManager) SchedulePeriodic() {
	m.tasks.SchedulePeriodic(taskSyncPeriodic, m.config.Interval, m.config.Interval,
		domain.TaskConstraints{RequireNetwork: true}, m.drainTask)
}

func (m *SyncManager) drainTask(ctx context.Context) error {
	_, err := m.Drain(ctx)
	return err
}

// Pending returns the queued items.
func (m *SyncManager) Pending(ctx context.Context) ([]domain.SyncQueueItem, error) {
	return m.queue.PendingItems(ctx)
}
