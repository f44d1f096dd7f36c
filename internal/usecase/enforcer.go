package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
)

// EnforcementResult captures what happened during a single shield.
type EnforcementResult struct {
	Package    string
	ShieldType domain.ShieldType
	KilledPIDs []int
	Errors     []error
	ExecutedAt time.Time
	DurationMs int64
}

// EnforcerImpl is the desktop shield: it terminates the blocked app's
// processes and tells the user why.
type EnforcerImpl struct {
	processManager domain.ProcessManager
	catalog        domain.AppCatalog
	notifier       domain.Notifier
	logger         *zap.Logger
	selfPID        int
}

// NewEnforcer creates a shield presenter backed by process termination.
func NewEnforcer(
	pm domain.ProcessManager,
	catalog domain.AppCatalog,
	notifier domain.Notifier,
	logger *zap.Logger,
) *EnforcerImpl {
	return &EnforcerImpl{
		processManager: pm,
		catalog:        catalog,
		notifier:       notifier,
		logger:         logger,
		selfPID:        os.Getpid(),
	}
}

// Show enforces a shield request.
func (e *EnforcerImpl) Show(ctx context.Context, req domain.ShieldRequest) error {
	result := e.Enforce(ctx, req)

	title, body := e.shieldMessage(req)
	if err := e.notifier.Notify(ctx, title, body); err != nil {
		result.Errors = append(result.Errors, err)
	}

	if len(result.Errors) > 0 && len(result.KilledPIDs) == 0 {
		return fmt.Errorf("shield for %s failed: %w", req.BlockedPackage, errors.Join(result.Errors...))
	}
	return nil
}

// Enforce kills every process of the requested app.
func (e *EnforcerImpl) Enforce(ctx context.Context, req domain.ShieldRequest) *EnforcementResult {
	start := time.Now()

	result := &EnforcementResult{
		Package:    req.BlockedPackage,
		ShieldType: req.ShieldType,
		KilledPIDs: make([]int, 0),
		Errors:     make([]error, 0),
		ExecutedAt: start,
	}

	for _, pattern := range e.catalog.ProcessPatterns(req.BlockedPackage) {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, ctx.Err())
			break
		}
		pids, err := e.processManager.FindByName(pattern)
		if err != nil {
			e.logger.Warn("failed to find processes",
				zap.String("pattern", pattern),
				zap.Error(err))
			result.Errors = append(result.Errors, err)
			continue
		}

		for _, pid := range pids {
			if pid == e.selfPID {
				continue
			}
			if err := e.processManager.Kill(pid); err != nil {
				e.logger.Warn("failed to kill process",
					zap.Int("pid", pid),
					zap.Error(err))
				result.Errors = append(result.Errors, err)
			} else {
				e.logger.Info("killed process",
					zap.String("package", req.BlockedPackage),
					zap.String("shield", string(req.ShieldType)),
					zap.Int("pid", pid),
					zap.String("pattern", pattern))
				result.KilledPIDs = append(result.KilledPIDs, pid)
			}
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

func (e *EnforcerImpl) shieldMessage(req domain.ShieldRequest) (string, string) {
	app := req.AppName
	if app == "" {
		app = e.catalog.DisplayName(req.BlockedPackage)
	}
	switch req.ShieldType {
	case domain.ShieldGoalReached:
		return "Goal reached!", fmt.Sprintf("Complete your session to unlock %s.", app)
	case domain.ShieldIntention:
		return "Be present", fmt.Sprintf("%s is blocked. Spend an open with `presentd intention open` to use it.", app)
	default:
		return "Stay focused", fmt.Sprintf("%s is blocked until your focus goal is reached.", app)
	}
}

// Ensure EnforcerImpl implements domain.ShieldPresenter.
var _ domain.ShieldPresenter = (*EnforcerImpl)(nil)
