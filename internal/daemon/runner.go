package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
)

// RunnerConfig holds background task runner configuration.
type RunnerConfig struct {
	OfflineRetry time.Duration // How long a network-bound task waits before re-checking
}

// DefaultRunnerConfig returns default runner configuration.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		OfflineRetry: time.Minute,
	}
}

type task struct {
	cancel   context.CancelFunc
	periodic bool
	fn       func(ctx context.Context) error
	running  bool
	rerun    bool
}

// TaskRunner implements domain.BackgroundTaskScheduler with goroutines.
// Tasks are named: a periodic task replaces any task of the same name, a
// one-shot coalesces with a pending or running one.
type TaskRunner struct {
	config RunnerConfig
	probe  domain.NetworkProbe
	logger *zap.Logger

	mu     sync.Mutex
	parent context.Context
	tasks  map[string]*task
	closed bool

	all   sync.WaitGroup
	onces sync.WaitGroup
}

// NewTaskRunner creates a runner. probe gates network-constrained tasks.
func NewTaskRunner(config RunnerConfig, probe domain.NetworkProbe, logger *zap.Logger) *TaskRunner {
	return &TaskRunner{
		config: config,
		probe:  probe,
		logger: logger,
		parent: context.Background(),
		tasks:  make(map[string]*task),
	}
}

// Bind ties tasks scheduled from now on to ctx.
func (r *TaskRunner) Bind(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parent = ctx
}

// SchedulePeriodic runs fn after initialDelay and then every interval.
func (r *TaskRunner) SchedulePeriodic(name string, initialDelay, interval time.Duration, c domain.TaskConstraints, fn func(ctx context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if old, ok := r.tasks[name]; ok {
		old.cancel()
	}
	ctx, cancel := context.WithCancel(r.parent)
	r.tasks[name] = &task{cancel: cancel, periodic: true, fn: fn}

	r.all.Add(1)
	go func() {
		defer r.all.Done()

		timer := time.NewTimer(initialDelay)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				r.runOnce(ctx, name, c, fn)
				timer.Reset(interval)
			}
		}
	}()
	r.logger.Debug("periodic task scheduled",
		zap.String("task", name),
		zap.Duration("initial_delay", initialDelay),
		zap.Duration("interval", interval))
}

// ScheduleOnce runs fn as soon as its constraints allow.
func (r *TaskRunner) ScheduleOnce(name string, c domain.TaskConstraints, fn func(ctx context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if t, ok := r.tasks[name]; ok && !t.periodic {
		t.fn = fn
		if t.running {
			t.rerun = true
		}
		return
	} else if ok {
		t.cancel()
	}

	ctx, cancel := context.WithCancel(r.parent)
	t := &task{cancel: cancel, fn: fn}
	r.tasks[name] = t

	r.all.Add(1)
	r.onces.Add(1)
	go func() {
		defer r.all.Done()
		defer r.onces.Done()
		defer cancel()

		for {
			if !r.waitForConstraints(ctx, name, c) {
				r.forget(name, t)
				return
			}

			r.mu.Lock()
			t.running = true
			run := t.fn
			r.mu.Unlock()

			r.invoke(ctx, name, run)

			r.mu.Lock()
			t.running = false
			if t.rerun && ctx.Err() == nil {
				t.rerun = false
				r.mu.Unlock()
				continue
			}
			if r.tasks[name] == t {
				delete(r.tasks, name)
			}
			r.mu.Unlock()
			return
		}
	}()
}

func (r *TaskRunner) forget(name string, t *task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tasks[name] == t {
		delete(r.tasks, name)
	}
}

// waitForConstraints blocks until c holds. It returns false if ctx ends first.
func (r *TaskRunner) waitForConstraints(ctx context.Context, name string, c domain.TaskConstraints) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		if !c.RequireNetwork || r.probe.Online(ctx) {
			return true
		}
		r.logger.Debug("task waiting for network", zap.String("task", name))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(r.config.OfflineRetry):
		}
	}
}

// runOnce runs a periodic occurrence, skipping it when constraints fail.
func (r *TaskRunner) runOnce(ctx context.Context, name string, c domain.TaskConstraints, fn func(ctx context.Context) error) {
	if c.RequireNetwork && !r.probe.Online(ctx) {
		r.logger.Debug("task skipped: offline", zap.String("task", name))
		return
	}
	r.invoke(ctx, name, fn)
}

func (r *TaskRunner) invoke(ctx context.Context, name string, fn func(ctx context.Context) error) {
	start := time.Now()
	err := fn(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn("task failed", zap.String("task", name), zap.Error(err))
		return
	}
	r.logger.Debug("task finished", zap.String("task", name), zap.Duration("took", time.Since(start)))
}

// Scheduled returns whether a task with name is pending or running.
func (r *TaskRunner) Scheduled(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[name]
	return ok
}

// Shutdown stops periodic tasks at once and gives one-shot tasks until
// ctx ends to finish.
func (r *TaskRunner) Shutdown(ctx context.Context) {
	r.mu.Lock()
	r.closed = true
	for _, t := range r.tasks {
		if t.periodic {
			t.cancel()
		}
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.onces.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		r.mu.Lock()
		for _, t := range r.tasks {
			t.cancel()
		}
		r.mu.Unlock()
	}
	r.all.Wait()
}

// Ensure TaskRunner implements domain.BackgroundTaskScheduler.
var _ domain.BackgroundTaskScheduler = (*TaskRunner)(nil)
