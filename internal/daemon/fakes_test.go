package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
)

// fakeStore is a minimal session/intention/preference store.
type fakeStore struct {
	mu         sync.Mutex
	active     *domain.Session
	intentions []domain.Intention
	heartbeat  time.Time
	beats      int
	err        error
}

func (s *fakeStore) setActive(sess *domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = sess
}

func (s *fakeStore) setIntentions(in ...domain.Intention) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intentions = in
}

func (s *fakeStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.ID == id {
		cp := *s.active
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}
func (s *fakeStore) SaveSession(ctx context.Context, sess domain.Session) error        { return nil }
func (s *fakeStore) AppendAction(ctx context.Context, a domain.SessionAction) error    { return nil }
func (s *fakeStore) ListActions(ctx context.Context, id string) ([]domain.SessionAction, error) {
	return nil, nil
}
func (s *fakeStore) SessionsStartedBetween(ctx context.Context, from, to time.Time) ([]domain.Session, error) {
	return nil, nil
}

func (s *fakeStore) ActiveSession(ctx context.Context) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.active == nil {
		return nil, nil
	}
	cp := *s.active
	return &cp, nil
}

func (s *fakeStore) GetIntention(ctx context.Context, id string) (*domain.Intention, error) {
	return nil, domain.ErrNotFound
}
func (s *fakeStore) GetIntentionByPackage(ctx context.Context, pkg string) (*domain.Intention, error) {
	return nil, domain.ErrNotFound
}
func (s *fakeStore) SaveIntention(ctx context.Context, in domain.Intention) error { return nil }
func (s *fakeStore) DeleteIntention(ctx context.Context, id string) error         { return nil }

func (s *fakeStore) ListIntentions(ctx context.Context) ([]domain.Intention, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Intention(nil), s.intentions...), nil
}

func (s *fakeStore) CountIntentions(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return len(s.intentions), nil
}

func (s *fakeStore) BlockedIntentions(ctx context.Context) ([]domain.Intention, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.Intention
	for _, in := range s.intentions {
		if !in.CurrentlyOpen {
			out = append(out, in)
		}
	}
	return out, nil
}

func (s *fakeStore) ActiveSessionID(ctx context.Context) (string, error)     { return "", nil }
func (s *fakeStore) SetActiveSessionID(ctx context.Context, id string) error { return nil }
func (s *fakeStore) AddRewards(ctx context.Context, r domain.Reward) error   { return nil }
func (s *fakeStore) Totals(ctx context.Context) (domain.Reward, error)       { return domain.Reward{}, nil }
func (s *fakeStore) StreakFreeze(ctx context.Context) (domain.StreakFreeze, error) {
	return domain.StreakFreeze{}, nil
}
func (s *fakeStore) SetStreakFreeze(ctx context.Context, f domain.StreakFreeze) error { return nil }

func (s *fakeStore) Heartbeat(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heartbeat, nil
}

func (s *fakeStore) SetHeartbeat(ctx context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeat = at
	s.beats++
	return nil
}

func (s *fakeStore) beatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beats
}

var errStoreDown = errors.New("store unavailable")

// scriptedObserver returns queued samples, then repeats the last one.
type scriptedObserver struct {
	mu      sync.Mutex
	samples []string
	err     error
	calls   int
}

func (o *scriptedObserver) Sample(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return "", o.err
	}
	if len(o.samples) == 0 {
		return "", nil
	}
	s := o.samples[0]
	if len(o.samples) > 1 {
		o.samples = o.samples[1:]
	}
	return s, nil
}

func (o *scriptedObserver) set(samples ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.samples = samples
}

func (o *scriptedObserver) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

type recordingShield struct {
	mu    sync.Mutex
	shown []domain.ShieldRequest
}

func (s *recordingShield) Show(ctx context.Context, req domain.ShieldRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = append(s.shown, req)
	return nil
}

func (s *recordingShield) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shown)
}

// staticProbe reports a fixed connectivity state.
type staticProbe struct {
	mu     sync.Mutex
	online bool
}

func (p *staticProbe) Online(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

func (p *staticProbe) set(online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = online
}

// manualClock is a settable time source.
type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
