package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/metrics"
)

const (
	dateLayout     = "2006-01-02"
	taskDailyReset = "daily_reset"
)

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// NextMidnight returns the first local midnight strictly after now.
func NextMidnight(now time.Time) time.Time {
	return startOfDay(now).AddDate(0, 0, 1)
}

// ResetConfig holds daily reset configuration.
type ResetConfig struct {
	GrantWeekday time.Weekday  // Day a streak freeze is issued
	Grace        time.Duration // Delay after midnight before running
}

// DefaultResetConfig returns default reset configuration.
func DefaultResetConfig() ResetConfig {
	return ResetConfig{
		GrantWeekday: time.Monday,
		Grace:        30 * time.Second,
	}
}

// ResetReport summarizes one reset run.
type ResetReport struct {
	Date           string
	Processed      int
	Skipped        int
	StreaksBroken  int
	FreezeConsumed bool
	FreezeGranted  bool
}

// DailyReset settles yesterday's intention quotas into streaks and
// starts a fresh day. Running it twice on the same date is a no-op.
type DailyReset struct {
	config  ResetConfig
	tracker *IntentionTracker
	prefs   domain.PreferenceStore
	sync    *SyncManager
	tasks   domain.BackgroundTaskScheduler
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewDailyReset creates the daily reset job.
func NewDailyReset(
	config ResetConfig,
	tracker *IntentionTracker,
	prefs domain.PreferenceStore,
	syncer *SyncManager,
	tasks domain.BackgroundTaskScheduler,
	m *metrics.Metrics,
	logger *zap.Logger,
) *DailyReset {
	return &DailyReset{
		config:  config,
		tracker: tracker,
		prefs:   prefs,
		sync:    syncer,
		tasks:   tasks,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Run performs the reset for the current local date.
func (d *DailyReset) Run(ctx context.Context) (ResetReport, error) {
	now := d.now()
	report := ResetReport{Date: now.Format(dateLayout)}

	processed, err := d.settleIntentions(ctx, now, &report)
	if err != nil {
		return report, err
	}
	d.metrics.DailyResets.Inc()

	d.logger.Info("daily reset completed",
		zap.String("date", report.Date),
		zap.Int("processed", report.Processed),
		zap.Int("skipped", report.Skipped),
		zap.Int("streaks_broken", report.StreaksBroken),
		zap.Bool("freeze_consumed", report.FreezeConsumed),
		zap.Bool("freeze_granted", report.FreezeGranted))

	if processed {
		d.queueSummaries(ctx, now)
	}
	return report, nil
}

func (d *DailyReset) settleIntentions(ctx context.Context, now time.Time, report *ResetReport) (bool, error) {
	t := d.tracker
	t.mu.Lock()
	defer t.mu.Unlock()

	freeze, err := d.prefs.StreakFreeze(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load streak freeze: %w", err)
	}
	intentions, err := t.store.ListIntentions(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list intentions: %w", err)
	}

	today := report.Date
	for _, in := range intentions {
		if in.LastResetDate == today {
			report.Skipped++
			continue
		}

		switch {
		case !in.OverLimit():
			in.Streak++
		case freeze.Available && !report.FreezeConsumed:
			in.Streak++
			report.FreezeConsumed = true
			d.logger.Info("streak freeze spent", zap.String("intention", in.ID), zap.Int("streak", in.Streak))
		default:
			in.Streak = 0
			report.StreaksBroken++
		}

		if in.CurrentlyOpen {
			t.reblock.Disarm(in.ID)
		}
		in.TotalOpensToday = 0
		in.CurrentlyOpen = false
		in.OpenedAt = nil
		in.LastResetDate = today

		if err := t.store.SaveIntention(ctx, in); err != nil {
			return report.Processed > 0, fmt.Errorf("failed to save intention %s: %w", in.ID, err)
		}
		report.Processed++
	}

	changed := false
	if report.FreezeConsumed {
		freeze.Available = false
		changed = true
		d.metrics.FreezesConsumed.Inc()
	}
	if now.Weekday() == d.config.GrantWeekday && freeze.LastGrantDate != today {
		freeze.Available = true
		freeze.LastGrantDate = today
		report.FreezeGranted = true
		changed = true
	}
	if changed {
		if err := d.prefs.SetStreakFreeze(ctx, freeze); err != nil {
			return report.Processed > 0, fmt.Errorf("failed to save streak freeze: %w", err)
		}
	}
	d.metrics.StreaksBroken.Add(float64(report.StreaksBroken))

	return report.Processed > 0, nil
}

// queueSummaries uploads yesterday's stats and the fresh intention list.
// Failures here never fail the reset.
func (d *DailyReset) queueSummaries(ctx context.Context, now time.Time) {
	if err := d.sync.EnqueueDailyStats(ctx, now.AddDate(0, 0, -1)); err != nil {
		d.logger.Warn("failed to queue daily stats", zap.Error(err))
	}
	if err := d.sync.EnqueueIntentions(ctx); err != nil {
		d.logger.Warn("failed to queue intentions snapshot", zap.Error(err))
	}
	d.sync.RequestDrain()
}

// Schedule registers the job to run shortly after every local midnight.
func (d *DailyReset) Schedule() {
	now := d.now()
	delay := NextMidnight(now).Add(d.config.Grace).Sub(now)
	d.tasks.SchedulePeriodic(taskDailyReset, delay, 24*time.Hour, domain.TaskConstraints{}, func(ctx context.Context) error {
		_, err := d.Run(ctx)
		return err
	})
	d.logger.Info("daily reset scheduled", zap.Duration("first_run_in", delay))
}
