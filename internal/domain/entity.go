// Package domain contains core business entities and interfaces.
// This is the innermost layer - no external dependencies.
package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicatePackage is returned when an intention already exists for a package.
var ErrDuplicatePackage = errors.New("an intention already exists for this app")

// SessionState is the lifecycle state of a focus session.
// Values match the remote records, do not rename.
type SessionState string

const (
	StateIdle        SessionState = "idle"
	StateActive      SessionState = "active"
	StateGoalReached SessionState = "goalReached"
	StateCompleted   SessionState = "completed"
	StateGaveUp      SessionState = "gaveUp"
	StateCanceled    SessionState = "canceled"
)

// Terminal reports whether no further transition is possible.
func (s SessionState) Terminal() bool {
	switch s {
	case StateCompleted, StateGaveUp, StateCanceled:
		return true
	}
	return false
}

// Blocking reports whether the session still shields its apps.
func (s SessionState) Blocking() bool {
	return s == StateActive || s == StateGoalReached
}

// ActionTag names a recorded session transition.
type ActionTag string

const (
	ActionStart       ActionTag = "start"
	ActionCancel      ActionTag = "cancel"
	ActionGiveUp      ActionTag = "giveUp"
	ActionGoalReached ActionTag = "goalReached"
	ActionComplete    ActionTag = "complete"
)

// Session is a time-boxed focus period blocking a set of apps.
type Session struct {
	ID              string
	Name            string
	GoalMinutes     int
	BeastMode       bool
	State           SessionState
	BlockedPackages []string
	StartedAt       *time.Time
	GoalReachedAt   *time.Time
	EndedAt         *time.Time
	EarnedXP        int
	EarnedCoins     int
	CreatedAt       time.Time
}

// GoalDuration returns the goal as a duration.
func (s Session) GoalDuration() time.Duration {
	return time.Duration(s.GoalMinutes) * time.Minute
}

// GoalAt returns when the goal is reached, or zero time if not started.
func (s Session) GoalAt() time.Time {
	if s.StartedAt == nil {
		return time.Time{}
	}
	return s.StartedAt.Add(s.GoalDuration())
}

// Blocks reports whether pkg is in the session's blocked list.
func (s Session) Blocks(pkg string) bool {
	for _, p := range s.BlockedPackages {
		if p == pkg {
			return true
		}
	}
	return false
}

// SessionAction is an append-only audit record of one transition.
type SessionAction struct {
	ID        string
	SessionID string
	Action    ActionTag
	At        time.Time
}

// Intention is a per-app daily quota of opens, each capped to a time window.
type Intention struct {
	ID                 string
	PackageName        string
	AppName            string
	AllowedOpensPerDay int
	TimePerOpenMinutes int
	TotalOpensToday    int
	Streak             int
	LastResetDate      string // "2006-01-02", empty before the first reset
	CurrentlyOpen      bool
	OpenedAt           *time.Time
	CreatedAt          time.Time
}

// OpenWindow returns how long one open lasts.
func (i Intention) OpenWindow() time.Duration {
	return time.Duration(i.TimePerOpenMinutes) * time.Minute
}

// OverLimit reports whether today's opens exceeded the allowance.
func (i Intention) OverLimit() bool {
	return i.TotalOpensToday > i.AllowedOpensPerDay
}

// StreakFreeze is the single process-wide token that spares one streak.
type StreakFreeze struct {
	Available     bool
	LastGrantDate string
}

// Reward is what a completed session pays out.
type Reward struct {
	XP    int
	Coins int
}

// SyncType tags what a queued sync item carries.
type SyncType string

const (
	SyncSession    SyncType = "session"
	SyncDailyStats SyncType = "dailyStats"
	SyncIntentions SyncType = "intentions"
)

// MaxSyncRetries is the retry ceiling; items above it are evicted.
const MaxSyncRetries = 10

// SyncQueueItem is a pending upload to the remote store.
type SyncQueueItem struct {
	ID         int64
	Type       SyncType
	Payload    []byte
	CreatedAt  time.Time
	RetryCount int
}

// ShieldType selects which block screen is shown.
type ShieldType string

const (
	ShieldSession     ShieldType = "session"
	ShieldGoalReached ShieldType = "goalReached"
	ShieldIntention   ShieldType = "intention"
)

// ShieldRequest asks the presentation layer to block an app.
type ShieldRequest struct {
	BlockedPackage string
	ShieldType     ShieldType
	SessionID      string // set for session shields
	IntentionID    string // set for intention shields
	AppName        string
}

// WakePurpose identifies what a scheduled wake-up is for.
type WakePurpose string

const (
	WakeGoal             WakePurpose = "goal"
	WakeIntentionWarning WakePurpose = "intention-warning"
	WakeIntentionExpiry  WakePurpose = "intention-expiry"
)

// WakeKey uniquely identifies a wake-up. Scheduling and cancelling
// must use the same key derivation.
type WakeKey struct {
	Purpose  WakePurpose
	EntityID string
}

func (k WakeKey) String() string {
	return string(k.Purpose) + ":" + k.EntityID
}

// GoalWakeKey is the goal timer key for a session.
func GoalWakeKey(sessionID string) WakeKey {
	return WakeKey{Purpose: WakeGoal, EntityID: sessionID}
}

// WarningWakeKey is the pre-expiry warning key for an intention.
func WarningWakeKey(intentionID string) WakeKey {
	return WakeKey{Purpose: WakeIntentionWarning, EntityID: intentionID}
}

// ExpiryWakeKey is the hard expiry key for an intention.
func ExpiryWakeKey(intentionID string) WakeKey {
	return WakeKey{Purpose: WakeIntentionExpiry, EntityID: intentionID}
}

// TaskConstraints restrict when a background task may run.
type TaskConstraints struct {
	RequireNetwork bool
}
