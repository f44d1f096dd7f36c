package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/metrics"
)

var (
	// ErrIntentionNotFound is returned when an intention id does not resolve.
	ErrIntentionNotFound = errors.New("intention not found")

	// ErrInvalidIntention is returned for malformed intention input.
	ErrInvalidIntention = errors.New("invalid intention")
)

// IntentionInput holds the user-editable fields of an intention.
type IntentionInput struct {
	PackageName        string
	AppName            string
	AllowedOpensPerDay int
	TimePerOpenMinutes int
}

func (in IntentionInput) validate() error {
	if strings.TrimSpace(in.PackageName) == "" {
		return fmt.Errorf("%w: app identifier is required", ErrInvalidIntention)
	}
	if in.AllowedOpensPerDay < 0 {
		return fmt.Errorf("%w: opens per day cannot be negative", ErrInvalidIntention)
	}
	if in.TimePerOpenMinutes < 1 {
		return fmt.Errorf("%w: each open must last at least 1 minute", ErrInvalidIntention)
	}
	return nil
}

// IntentionTracker manages intention quotas and the open/blocked state
// of each intention app.
type IntentionTracker struct {
	store   domain.IntentionStore
	monitor domain.MonitorController
	reblock *ReblockScheduler
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time

	mu sync.Mutex
}

// NewIntentionTracker creates a tracker and its reblock scheduler.
func NewIntentionTracker(
	store domain.IntentionStore,
	wake domain.WakeScheduler,
	monitor domain.MonitorController,
	notifier domain.Notifier,
	observer domain.ForegroundObserver,
	shield domain.ShieldPresenter,
	m *metrics.Metrics,
	logger *zap.Logger,
) *IntentionTracker {
	t := &IntentionTracker{
		store:   store,
		monitor: monitor,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
	t.reblock = &ReblockScheduler{
		tracker:  t,
		wake:     wake,
		notifier: notifier,
		observer: observer,
		shield:   shield,
		logger:   logger.Named("reblock"),
	}
	return t
}

// Reblocker returns the tracker's reblock scheduler.
func (t *IntentionTracker) Reblocker() *ReblockScheduler {
	return t.reblock
}

// Create adds an intention. The creation day is judged at the next reset.
func (t *IntentionTracker) Create(ctx context.Context, input IntentionInput) (*domain.Intention, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	pkg := strings.TrimSpace(input.PackageName)
	if _, err := t.store.GetIntentionByPackage(ctx, pkg); err == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicatePackage, pkg)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing intention: %w", err)
	}

	now := t.now()
	in := domain.Intention{
		ID:                 uuid.NewString(),
		PackageName:        pkg,
		AppName:            appNameOr(input.AppName, pkg),
		AllowedOpensPerDay: input.AllowedOpensPerDay,
		TimePerOpenMinutes: input.TimePerOpenMinutes,
		LastResetDate:      now.Format(dateLayout),
		CreatedAt:          now,
	}
	if err := t.store.SaveIntention(ctx, in); err != nil {
		return nil, fmt.Errorf("failed to save intention: %w", err)
	}

	t.monitor.EnsureRunning()
	t.logger.Info("intention created",
		zap.String("intention", in.ID),
		zap.String("package", in.PackageName),
		zap.Int("opens_per_day", in.AllowedOpensPerDay),
		zap.Int("minutes_per_open", in.TimePerOpenMinutes))
	return &in, nil
}

// Update changes the editable fields. The app identifier and counters
// are kept from the stored record.
func (t *IntentionTracker) Update(ctx context.Context, id string, input IntentionInput) (*domain.Intention, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	in, err := t.load(ctx, id)
	if err != nil {
		return nil, err
	}
	input.PackageName = in.PackageName
	if err := input.validate(); err != nil {
		return nil, err
	}

	in.AppName = appNameOr(input.AppName, in.AppName)
	in.AllowedOpensPerDay = input.AllowedOpensPerDay
	in.TimePerOpenMinutes = input.TimePerOpenMinutes
	if err := t.store.SaveIntention(ctx, *in); err != nil {
		return nil, fmt.Errorf("failed to save intention: %w", err)
	}
	t.logger.Info("intention updated", zap.String("intention", id))
	return in, nil
}

// Upsert creates the intention for input's app, or updates it if one exists.
func (t *IntentionTracker) Upsert(ctx context.Context, input IntentionInput) (*domain.Intention, error) {
	existing, err := t.store.GetIntentionByPackage(ctx, strings.TrimSpace(input.PackageName))
	if errors.Is(err, domain.ErrNotFound) {
		return t.Create(ctx, input)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up intention: %w", err)
	}
	return t.Update(ctx, existing.ID, input)
}

// Delete removes an intention and its pending wake-ups.
func (t *IntentionTracker) Delete(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.reblock.Disarm(id)
	if err := t.store.DeleteIntention(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrIntentionNotFound, id)
		}
		return fmt.Errorf("failed to delete intention: %w", err)
	}
	t.monitor.Reevaluate(ctx)
	t.logger.Info("intention deleted", zap.String("intention", id))
	return nil
}

// OpenApp spends one open and unblocks the app for its window.
func (t *IntentionTracker) OpenApp(ctx context.Context, id string) (*domain.Intention, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	in, err := t.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := t.now()
	in.TotalOpensToday++
	in.CurrentlyOpen = true
	in.OpenedAt = &now
	if err := t.store.SaveIntention(ctx, *in); err != nil {
		return nil, fmt.Errorf("failed to save intention: %w", err)
	}

	t.reblock.Arm(*in)
	t.metrics.Opens.Inc()
	t.logger.Info("intention app opened",
		zap.String("intention", id),
		zap.String("package", in.PackageName),
		zap.Int("opens_today", in.TotalOpensToday),
		zap.Int("allowed", in.AllowedOpensPerDay))
	return in, nil
}

// ReblockApp closes the app's open window. Calling it again is harmless.
func (t *IntentionTracker) ReblockApp(ctx context.Context, id string) (*domain.Intention, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.reblock.Disarm(id)
	in, err := t.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !in.CurrentlyOpen && in.OpenedAt == nil {
		return in, nil
	}
	if err := t.closeWindow(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

// expireWindow closes the window opened at openedAt. It reports false
// when the intention is already closed or was opened again since.
func (t *IntentionTracker) expireWindow(ctx context.Context, id string, openedAt *time.Time) (*domain.Intention, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	in, err := t.load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !in.CurrentlyOpen || !sameInstant(in.OpenedAt, openedAt) {
		return in, false, nil
	}

	t.reblock.Disarm(id)
	if err := t.closeWindow(ctx, in); err != nil {
		return nil, false, err
	}
	return in, true, nil
}

func (t *IntentionTracker) closeWindow(ctx context.Context, in *domain.Intention) error {
	in.CurrentlyOpen = false
	in.OpenedAt = nil
	if err := t.store.SaveIntention(ctx, *in); err != nil {
		return fmt.Errorf("failed to save intention: %w", err)
	}
	t.metrics.Reblocks.Inc()
	t.logger.Info("intention app reblocked", zap.String("intention", in.ID), zap.String("package", in.PackageName))
	return nil
}

// sameInstant compares open times at the millisecond precision they are
// stored with.
func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UnixMilli() == b.UnixMilli()
}

// Recover re-arms open windows, reblocking the ones that expired while
// nothing was running.
func (t *IntentionTracker) Recover(ctx context.Context) error {
	intentions, err := t.store.ListIntentions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list intentions: %w", err)
	}
	if len(intentions) > 0 {
		t.monitor.EnsureRunning()
	}

	now := t.now()
	for _, in := range intentions {
		if !in.CurrentlyOpen {
			continue
		}
		if in.OpenedAt == nil || !now.Before(in.OpenedAt.Add(in.OpenWindow())) {
			t.reblock.OnExpiry(ctx, in.ID, in.OpenedAt)
			continue
		}
		t.reblock.Arm(in)
	}
	return nil
}

// List returns every intention.
func (t *IntentionTracker) List(ctx context.Context) ([]domain.Intention, error) {
	return t.store.ListIntentions(ctx)
}

// Get returns an intention by id.
func (t *IntentionTracker) Get(ctx context.Context, id string) (*domain.Intention, error) {
	return t.load(ctx, id)
}

// GetByPackage returns the intention owning pkg.
func (t *IntentionTracker) GetByPackage(ctx context.Context, pkg string) (*domain.Intention, error) {
	in, err := t.store.GetIntentionByPackage(ctx, pkg)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrIntentionNotFound, pkg)
	}
	return in, err
}

func (t *IntentionTracker) load(ctx context.Context, id string) (*domain.Intention, error) {
	in, err := t.store.GetIntention(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		t.logger.Warn("intention not found", zap.String("intention", id))
		return nil, fmt.Errorf("%w: %s", ErrIntentionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load intention: %w", err)
	}
	return in, nil
}

func appNameOr(name, fallback string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return fallback
}
