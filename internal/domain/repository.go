package domain

import (
	"context"
	"time"
)

// SessionStore persists sessions and their action log.
// Implementation: SQLCipher encrypted SQLite.
type SessionStore interface {
	// GetSession returns ErrNotFound (wrapped) if the session does not exist.
	GetSession(ctx context.Context, id string) (*Session, error)

	// SaveSession inserts or replaces a session.
	SaveSession(ctx context.Context, s Session) error

	// AppendAction records a transition. Never updated or deleted.
	AppendAction(ctx context.Context, a SessionAction) error

	// ListActions returns a session's actions in recorded order.
	ListActions(ctx context.Context, sessionID string) ([]SessionAction, error)

	// ActiveSession returns the session in active or goalReached state,
	// or nil if there is none.
	ActiveSession(ctx context.Context) (*Session, error)

	// SessionsStartedBetween returns sessions with from <= startedAt < to.
	SessionsStartedBetween(ctx context.Context, from, to time.Time) ([]Session, error)
}

// IntentionStore persists intentions.
type IntentionStore interface {
	GetIntention(ctx context.Context, id string) (*Intention, error)
	GetIntentionByPackage(ctx context.Context, pkg string) (*Intention, error)
	ListIntentions(ctx context.Context) ([]Intention, error)

	// SaveIntention upserts by ID. Returns ErrDuplicatePackage if another
	// intention already owns the package.
	SaveIntention(ctx context.Context, in Intention) error

	DeleteIntention(ctx context.Context, id string) error
	CountIntentions(ctx context.Context) (int, error)

	// BlockedIntentions returns intentions that are not currently open.
	BlockedIntentions(ctx context.Context) ([]Intention, error)
}

// SyncQueueStore is the durable outbox for remote uploads.
type SyncQueueStore interface {
	Enqueue(ctx context.Context, item SyncQueueItem) (int64, error)

	// PendingItems returns items in creation order.
	PendingItems(ctx context.Context) ([]SyncQueueItem, error)

	DeleteItem(ctx context.Context, id int64) error
	IncrementRetry(ctx context.Context, id int64) error

	// PurgeExceeding removes items with retry count above maxRetries.
	PurgeExceeding(ctx context.Context, maxRetries int) (int64, error)

	CountPending(ctx context.Context) (int, error)
}

// PreferenceStore holds small process-wide values.
type PreferenceStore interface {
	ActiveSessionID(ctx context.Context) (string, error)
	SetActiveSessionID(ctx context.Context, id string) error

	// AddRewards adds to the running XP and coin totals.
	AddRewards(ctx context.Context, r Reward) error
	Totals(ctx context.Context) (Reward, error)

	StreakFreeze(ctx context.Context) (StreakFreeze, error)
	SetStreakFreeze(ctx context.Context, f StreakFreeze) error

	Heartbeat(ctx context.Context) (time.Time, error)
	SetHeartbeat(ctx context.Context, at time.Time) error
}

// SecretStore provides encrypted key-value storage for secrets.
type SecretStore interface {
	// GetSecret returns ErrNotFound (wrapped) if the key is absent.
	GetSecret(key string) (string, error)

	SetSecret(key, value string) error
	DeleteSecret(key string) error
}

// KeyProvider abstracts encryption key retrieval.
type KeyProvider interface {
	GetKey() ([]byte, error)
	StoreKey(key []byte) error
	KeyExists() bool
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByName returns PIDs of processes matching the pattern.
	FindByName(pattern string) ([]int, error)

	// NameOf returns the executable name of a PID.
	NameOf(pid int) (string, error)

	// Kill terminates a process by PID (SIGKILL).
	Kill(pid int) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool
}

// ForegroundObserver samples the app the user is looking at.
type ForegroundObserver interface {
	// Sample returns the foreground app identifier, or "" if unknown.
	Sample(ctx context.Context) (string, error)
}

// ShieldPresenter interposes a block over an app.
type ShieldPresenter interface {
	Show(ctx context.Context, req ShieldRequest) error
}

// Notifier posts a user-visible notification.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// WakeScheduler fires a callback at a wall-clock time.
// Scheduling an existing key replaces it.
type WakeScheduler interface {
	Schedule(key WakeKey, at time.Time, fn func(ctx context.Context))
	Cancel(key WakeKey)
}

// BackgroundTaskScheduler runs deferrable work.
// Scheduling a name that is already pending replaces it.
type BackgroundTaskScheduler interface {
	SchedulePeriodic(name string, initialDelay, interval time.Duration, c TaskConstraints, fn func(ctx context.Context) error)
	ScheduleOnce(name string, c TaskConstraints, fn func(ctx context.Context) error)
}

// NetworkProbe reports whether the remote store is reachable.
type NetworkProbe interface {
	Online(ctx context.Context) bool
}

// RemoteSyncer delivers queued payloads to the remote store.
type RemoteSyncer interface {
	// Authenticated reports whether a remote identity is configured.
	Authenticated() bool

	Deliver(ctx context.Context, kind SyncType, payload []byte) error
}

// MonitorController starts and stops the foreground monitor.
type MonitorController interface {
	// EnsureRunning starts the monitor if it is not running.
	EnsureRunning()

	// Reevaluate starts or stops the monitor to match what is left to enforce.
	Reevaluate(ctx context.Context)
}

// AppCatalog resolves an app identifier to the process names it runs as.
// Implementation: in-memory catalog of known apps.
type AppCatalog interface {
	// ProcessPatterns returns process name patterns for pkg.
	// Patterns are matched case-insensitively.
	ProcessPatterns(pkg string) []string

	// DisplayName returns a human-readable name for pkg.
	DisplayName(pkg string) string
}
