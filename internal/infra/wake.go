package infra

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
)

// DefaultHandlerTimeout bounds a single wake-up handler.
const DefaultHandlerTimeout = 30 * time.Second

// TimerScheduler implements domain.WakeScheduler with in-process timers.
// Wake-ups do not survive a restart; callers re-arm them on startup.
type TimerScheduler struct {
	handlerTimeout time.Duration
	logger         *zap.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTimerScheduler creates a scheduler whose handlers run with at most
// handlerTimeout each.
func NewTimerScheduler(handlerTimeout time.Duration, logger *zap.Logger) *TimerScheduler {
	base, cancel := context.WithCancel(context.Background())
	return &TimerScheduler{
		handlerTimeout: handlerTimeout,
		logger:         logger,
		timers:         make(map[string]*time.Timer),
		base:           base,
		cancel:         cancel,
	}
}

// Schedule fires fn at the given time, replacing any wake-up with the same key.
// A time in the past fires immediately.
func (s *TimerScheduler) Schedule(key domain.WakeKey, at time.Time, fn func(ctx context.Context)) {
	k := key.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if old, ok := s.timers[k]; ok {
		old.Stop()
	}

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if cur, ok := s.timers[k]; !ok || cur != t || s.closed {
			s.mu.Unlock()
			return
		}
		delete(s.timers, k)
		s.wg.Add(1)
		s.mu.Unlock()
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.base, s.handlerTimeout)
		defer cancel()
		s.logger.Debug("wake-up fired", zap.String("key", k))
		fn(ctx)
	})
	s.timers[k] = t
	s.logger.Debug("wake-up scheduled", zap.String("key", k), zap.Time("at", at))
}

// Cancel drops a pending wake-up. Unknown keys are ignored.
func (s *TimerScheduler) Cancel(key domain.WakeKey) {
	k := key.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[k]; ok {
		t.Stop()
		delete(s.timers, k)
		s.logger.Debug("wake-up canceled", zap.String("key", k))
	}
}

// Pending returns the keys of wake-ups that have not fired.
func (s *TimerScheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.timers))
	for k := range s.timers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close stops all pending wake-ups and waits for running handlers.
func (s *TimerScheduler) Close() {
	s.mu.Lock()
	s.closed = true
	for k, t := range s.timers {
		t.Stop()
		delete(s.timers, k)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// Ensure TimerScheduler implements domain.WakeScheduler.
var _ domain.WakeScheduler = (*TimerScheduler)(nil)
