package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
)

// WarningLead is how long before expiry the user is warned.
const WarningLead = 30 * time.Second

// ReblockScheduler arms the warning and expiry wake-ups of an open
// intention window and handles them when they fire.
type ReblockScheduler struct {
	tracker  *IntentionTracker
	wake     domain.WakeScheduler
	notifier domain.Notifier
	observer domain.ForegroundObserver
	shield   domain.ShieldPresenter
	logger   *zap.Logger
}

// Arm schedules the wake-ups for in's current window, replacing any
// previous ones.
func (r *ReblockScheduler) Arm(in domain.Intention) {
	r.Disarm(in.ID)
	if in.OpenedAt == nil {
		return
	}

	id := in.ID
	openedAt := *in.OpenedAt
	window := in.OpenWindow()
	expiry := openedAt.Add(window)

	if window > WarningLead {
		r.wake.Schedule(domain.WarningWakeKey(id), expiry.Add(-WarningLead), func(ctx context.Context) {
			r.OnWarning(ctx, id)
		})
	}
	r.wake.Schedule(domain.ExpiryWakeKey(id), expiry, func(ctx context.Context) {
		r.OnExpiry(ctx, id, &openedAt)
	})

	r.logger.Debug("reblock armed", zap.String("intention", id), zap.Time("expiry", expiry))
}

// Disarm cancels both wake-ups of an intention.
func (r *ReblockScheduler) Disarm(intentionID string) {
	r.wake.Cancel(domain.WarningWakeKey(intentionID))
	r.wake.Cancel(domain.ExpiryWakeKey(intentionID))
}

// OnWarning tells the user the window is about to close, if it is still open.
func (r *ReblockScheduler) OnWarning(ctx context.Context, intentionID string) {
	in, err := r.tracker.store.GetIntention(ctx, intentionID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn("failed to load intention for warning", zap.String("intention", intentionID), zap.Error(err))
		}
		return
	}
	if !in.CurrentlyOpen {
		return
	}
	body := fmt.Sprintf("%s closes in %d seconds", in.AppName, int(WarningLead.Seconds()))
	if err := r.notifier.Notify(ctx, "Almost time", body); err != nil {
		r.logger.Warn("failed to send reblock warning", zap.Error(err))
	}
}

// OnExpiry reblocks the window that opened at openedAt and shields the
// app if the user is still in it. A window that was already closed or
// replaced by a newer open is left alone.
func (r *ReblockScheduler) OnExpiry(ctx context.Context, intentionID string, openedAt *time.Time) {
	in, expired, err := r.tracker.expireWindow(ctx, intentionID, openedAt)
	if err != nil {
		if !errors.Is(err, ErrIntentionNotFound) {
			r.logger.Error("failed to reblock intention", zap.String("intention", intentionID), zap.Error(err))
		}
		return
	}
	if !expired {
		r.logger.Debug("stale expiry ignored", zap.String("intention", intentionID))
		return
	}

	if err := r.notifier.Notify(ctx, "Time's up", fmt.Sprintf("%s time is up", in.AppName)); err != nil {
		r.logger.Warn("failed to send reblock notification", zap.Error(err))
	}

	fg, err := r.observer.Sample(ctx)
	if err != nil {
		r.logger.Debug("foreground sample failed at expiry", zap.Error(err))
		return
	}
	if fg != in.PackageName {
		return
	}
	req := domain.ShieldRequest{
		BlockedPackage: in.PackageName,
		ShieldType:     domain.ShieldIntention,
		IntentionID:    in.ID,
		AppName:        in.AppName,
	}
	if err := r.shield.Show(ctx, req); err != nil {
		r.logger.Warn("failed to show intention shield", zap.String("package", in.PackageName), zap.Error(err))
	}
}
