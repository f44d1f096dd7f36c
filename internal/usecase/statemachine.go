// Package usecase contains application business logic.
package usecase

import (
	"errors"
	"fmt"
	"time"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
)

// CancelWindow is how long after start a session may still be canceled
// without counting as giving up.
const CancelWindow = 10 * time.Second

var (
	// ErrIllegalTransition means the intent is not valid from the current state.
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrCancelWindowExpired means cancel was attempted after CancelWindow.
	ErrCancelWindowExpired = errors.New("cancel window expired")

	// ErrBeastMode means give-up was attempted on a beast-mode session.
	ErrBeastMode = errors.New("beast mode enabled")
)

// TransitionError reports why an intent was rejected.
// Kind is one of the sentinels above and matches with errors.Is.
type TransitionError struct {
	Intent domain.ActionTag
	State  domain.SessionState
	Kind   error
}

func (e *TransitionError) Error() string {
	switch e.Kind {
	case ErrCancelWindowExpired:
		return "cannot cancel after 10 seconds, use give up instead"
	case ErrBeastMode:
		return "beast mode is enabled, cannot give up"
	default:
		return fmt.Sprintf("cannot %s session in state: %s", e.Intent, e.State)
	}
}

func (e *TransitionError) Unwrap() error { return e.Kind }

// Transition describes an accepted intent and the effects the caller
// must perform. It carries no behavior.
type Transition struct {
	From   domain.SessionState
	To     domain.SessionState
	Action domain.ActionTag

	CancelTimer       bool
	ClearActive       bool
	ReevaluateMonitor bool
	RewardEligible    bool
	Sync              bool

	StampStarted     bool
	StampGoalReached bool
	StampEnded       bool
}

// Apply decides whether intent is allowed for s at now.
// It is pure: s is not modified.
func Apply(s domain.Session, intent domain.ActionTag, now time.Time) (Transition, error) {
	reject := func(kind error) (Transition, error) {
		return Transition{}, &TransitionError{Intent: intent, State: s.State, Kind: kind}
	}

	t := Transition{From: s.State, Action: intent}

	switch intent {
	case domain.ActionStart:
		if s.State != domain.StateIdle {
			return reject(ErrIllegalTransition)
		}
		t.To = domain.StateActive
		t.StampStarted = true

	case domain.ActionCancel:
		if s.State != domain.StateActive {
			return reject(ErrIllegalTransition)
		}
		if s.StartedAt == nil || now.Sub(*s.StartedAt) > CancelWindow {
			return reject(ErrCancelWindowExpired)
		}
		t.To = domain.StateCanceled
		t.CancelTimer = true
		t.ClearActive = true
		t.ReevaluateMonitor = true
		t.StampEnded = true

	case domain.ActionGiveUp:
		if s.State != domain.StateActive {
			return reject(ErrIllegalTransition)
		}
		if s.BeastMode {
			return reject(ErrBeastMode)
		}
		t.To = domain.StateGaveUp
		t.CancelTimer = true
		t.ClearActive = true
		t.ReevaluateMonitor = true
		t.Sync = true
		t.StampEnded = true

	case domain.ActionGoalReached:
		if s.State != domain.StateActive {
			return reject(ErrIllegalTransition)
		}
		t.To = domain.StateGoalReached
		t.StampGoalReached = true

	case domain.ActionComplete:
		if s.State != domain.StateGoalReached {
			return reject(ErrIllegalTransition)
		}
		t.To = domain.StateCompleted
		t.ClearActive = true
		t.ReevaluateMonitor = true
		t.RewardEligible = true
		t.Sync = true
		t.StampEnded = true

	default:
		return reject(ErrIllegalTransition)
	}

	return t, nil
}

// Stamp returns a copy of s moved to the transition's target state with
// its timestamps set.
func (t Transition) Stamp(s domain.Session, now time.Time) domain.Session {
	s.State = t.To
	at := now
	if t.StampStarted {
		s.StartedAt = &at
	}
	if t.StampGoalReached {
		s.GoalReachedAt = &at
	}
	if t.StampEnded {
		s.EndedAt = &at
	}
	return s
}
