package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
)

const (
	storeDBName = "presentd.db"

	prefActiveSession  = "active_session_id"
	prefTotalXP        = "total_xp"
	prefTotalCoins     = "total_coins"
	prefFreezeAvail    = "streak_freeze_available"
	prefFreezeGranted  = "streak_freeze_last_grant"
	prefHeartbeat      = "daemon_heartbeat"
	prefOnboardingDone = "onboarding_completed"
)

// EncryptedStore implements the engine's stores using a SQLCipher
// encrypted SQLite database.
type EncryptedStore struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedStore opens (or creates) the encrypted database.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedStore(dataDir string, key []byte) (*EncryptedStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, storeDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// One writer; the daemon and CLI processes contend through SQLite locking.
	db.SetMaxOpenConns(1)

	// A wrong key only shows up on first read.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	s := &EncryptedStore{db: db, dbPath: dbPath}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *EncryptedStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		goal_minutes INTEGER NOT NULL,
		beast_mode INTEGER NOT NULL DEFAULT 0,
		state TEXT NOT NULL,
		blocked_packages TEXT NOT NULL DEFAULT '[]',
		started_at INTEGER,
		goal_reached_at INTEGER,
		ended_at INTEGER,
		earned_xp INTEGER NOT NULL DEFAULT 0,
		earned_coins INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions (state);

	CREATE TABLE IF NOT EXISTS session_actions (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		action TEXT NOT NULL,
		at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_session_actions_session ON session_actions (session_id);

	CREATE TABLE IF NOT EXISTS intentions (
		id TEXT PRIMARY KEY,
		package_name TEXT NOT NULL UNIQUE,
		app_name TEXT NOT NULL,
		allowed_opens INTEGER NOT NULL,
		minutes_per_open INTEGER NOT NULL,
		opens_today INTEGER NOT NULL DEFAULT 0,
		streak INTEGER NOT NULL DEFAULT 0,
		last_reset_date TEXT NOT NULL DEFAULT '',
		currently_open INTEGER NOT NULL DEFAULT 0,
		opened_at INTEGER,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS prefs (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS secrets (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *EncryptedStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *EncryptedStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// --- time helpers ---

func toMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type rowScanner interface {
	Scan(dest ...any) error
}

// --- domain.SessionStore implementation ---

const sessionColumns = `id, name, goal_minutes, beast_mode, state, blocked_packages,
	started_at, goal_reached_at, ended_at, earned_xp, earned_coins, created_at`

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		sess                        domain.Session
		beast                       int
		state, blocked              string
		started, goalReached, ended sql.NullInt64
		created                     int64
	)
	err := row.Scan(&sess.ID, &sess.Name, &sess.GoalMinutes, &beast, &state, &blocked,
		&started, &goalReached, &ended, &sess.EarnedXP, &sess.EarnedCoins, &created)
	if err != nil {
		return nil, err
	}
	if err := sonic.UnmarshalString(blocked, &sess.BlockedPackages); err != nil {
		return nil, fmt.Errorf("corrupt blocked packages for session %s: %w", sess.ID, err)
	}
	sess.BeastMode = beast == 1
	sess.State = domain.SessionState(state)
	sess.StartedAt = fromMillis(started)
	sess.GoalReachedAt = fromMillis(goalReached)
	sess.EndedAt = fromMillis(ended)
	sess.CreatedAt = time.UnixMilli(created)
	return &sess, nil
}

// GetSession returns a session by id.
func (s *EncryptedStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %q: %w", id, domain.ErrNotFound)
	}
	return sess, err
}

// SaveSession inserts or replaces a session.
func (s *EncryptedStore) SaveSession(ctx context.Context, sess domain.Session) error {
	blocked, err := sonic.MarshalString(sess.BlockedPackages)
	if err != nil {
		return fmt.Errorf("failed to encode blocked packages: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, sess.GoalMinutes, boolInt(sess.BeastMode), string(sess.State), blocked,
		toMillis(sess.StartedAt), toMillis(sess.GoalReachedAt), toMillis(sess.EndedAt),
		sess.EarnedXP, sess.EarnedCoins, sess.CreatedAt.UnixMilli(),
	)
	return err
}

// AppendAction records a transition.
func (s *EncryptedStore) AppendAction(ctx context.Context, a domain.SessionAction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_actions (id, session_id, action, at) VALUES (?, ?, ?, ?)`,
		a.ID, a.SessionID, string(a.Action), a.At.UnixMilli())
	return err
}

// ListActions returns a session's actions in recorded order.
func (s *EncryptedStore) ListActions(ctx context.Context, sessionID string) ([]domain.SessionAction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, action, at FROM session_actions WHERE session_id = ? ORDER BY at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []domain.SessionAction
	for rows.Next() {
		var (
			a      domain.SessionAction
			action string
			at     int64
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &action, &at); err != nil {
			return nil, err
		}
		a.Action = domain.ActionTag(action)
		a.At = time.UnixMilli(at)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// ActiveSession returns the blocking session, or nil.
func (s *EncryptedStore) ActiveSession(ctx context.Context) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE state IN (?, ?) ORDER BY started_at DESC LIMIT 1`,
		string(domain.StateActive), string(domain.StateGoalReached))
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sess, err
}

// SessionsStartedBetween returns sessions with from <= started_at < to.
func (s *EncryptedStore) SessionsStartedBetween(ctx context.Context, from, to time.Time) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE started_at >= ? AND started_at < ? ORDER BY started_at`,
		from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// --- domain.IntentionStore implementation ---

const intentionColumns = `id, package_name, app_name, allowed_opens, minutes_per_open,
	opens_today, streak, last_reset_date, currently_open, opened_at, created_at`

func scanIntention(row rowScanner) (*domain.Intention, error) {
	var (
		in      domain.Intention
		open    int
		opened  sql.NullInt64
		created int64
	)
	err := row.Scan(&in.ID, &in.PackageName, &in.AppName, &in.AllowedOpensPerDay, &in.TimePerOpenMinutes,
		&in.TotalOpensToday, &in.Streak, &in.LastResetDate, &open, &opened, &created)
	if err != nil {
		return nil, err
	}
	in.CurrentlyOpen = open == 1
	in.OpenedAt = fromMillis(opened)
	in.CreatedAt = time.UnixMilli(created)
	return &in, nil
}

func (s *EncryptedStore) queryIntentions(ctx context.Context, query string, args ...any) ([]domain.Intention, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Intention
	for rows.Next() {
		in, err := scanIntention(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *in)
	}
	return result, rows.Err()
}

// GetIntention returns an intention by id.
func (s *EncryptedStore) GetIntention(ctx context.Context, id string) (*domain.Intention, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+intentionColumns+` FROM intentions WHERE id = ?`, id)
	in, err := scanIntention(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("intention %q: %w", id, domain.ErrNotFound)
	}
	return in, err
}

// GetIntentionByPackage returns the intention owning pkg.
func (s *EncryptedStore) GetIntentionByPackage(ctx context.Context, pkg string) (*domain.Intention, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+intentionColumns+` FROM intentions WHERE package_name = ?`, pkg)
	in, err := scanIntention(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("intention for %q: %w", pkg, domain.ErrNotFound)
	}
	return in, err
}

// ListIntentions returns every intention, oldest first.
func (s *EncryptedStore) ListIntentions(ctx context.Context) ([]domain.Intention, error) {
	return s.queryIntentions(ctx, `SELECT `+intentionColumns+` FROM intentions ORDER BY created_at, id`)
}

// BlockedIntentions returns intentions that are not currently open.
func (s *EncryptedStore) BlockedIntentions(ctx context.Context) ([]domain.Intention, error) {
	return s.queryIntentions(ctx, `SELECT `+intentionColumns+` FROM intentions WHERE currently_open = 0 ORDER BY created_at, id`)
}

// SaveIntention upserts an intention by id.
func (s *EncryptedStore) SaveIntention(ctx context.Context, in domain.Intention) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO intentions (`+intentionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			package_name = excluded.package_name,
			app_name = excluded.app_name,
			allowed_opens = excluded.allowed_opens,
			minutes_per_open = excluded.minutes_per_open,
			opens_today = excluded.opens_today,
			streak = excluded.streak,
			last_reset_date = excluded.last_reset_date,
			currently_open = excluded.currently_open,
			opened_at = excluded.opened_at`,
		in.ID, in.PackageName, in.AppName, in.AllowedOpensPerDay, in.TimePerOpenMinutes,
		in.TotalOpensToday, in.Streak, in.LastResetDate, boolInt(in.CurrentlyOpen),
		toMillis(in.OpenedAt), in.CreatedAt.UnixMilli(),
	)
	var sqlErr sqlcipher.Error
	if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlcipher.ErrConstraintUnique {
		return fmt.Errorf("%s: %w", in.PackageName, domain.ErrDuplicatePackage)
	}
	return err
}

// DeleteIntention removes an intention.
func (s *EncryptedStore) DeleteIntention(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM intentions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("intention %q: %w", id, domain.ErrNotFound)
	}
	return nil
}

// CountIntentions returns the number of intentions.
func (s *EncryptedStore) CountIntentions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM intentions`).Scan(&n)
	return n, err
}

// --- domain.SyncQueueStore implementation ---

// Enqueue appends an item and returns its id.
func (s *EncryptedStore) Enqueue(ctx context.Context, item domain.SyncQueueItem) (int64, error) {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_queue (type, payload, created_at, retry_count) VALUES (?, ?, ?, ?)`,
		string(item.Type), string(item.Payload), item.CreatedAt.UnixMilli(), item.RetryCount)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// PendingItems returns items in creation order.
func (s *EncryptedStore) PendingItems(ctx context.Context) ([]domain.SyncQueueItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, payload, created_at, retry_count FROM sync_queue ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.SyncQueueItem
	for rows.Next() {
		var (
			item    domain.SyncQueueItem
			kind    string
			payload string
			created int64
		)
		if err := rows.Scan(&item.ID, &kind, &payload, &created, &item.RetryCount); err != nil {
			return nil, err
		}
		item.Type = domain.SyncType(kind)
		item.Payload = []byte(payload)
		item.CreatedAt = time.UnixMilli(created)
		items = append(items, item)
	}
	return items, rows.Err()
}

// DeleteItem removes a delivered item.
func (s *EncryptedStore) DeleteItem(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	return err
}

// IncrementRetry bumps an item's retry counter.
func (s *EncryptedStore) IncrementRetry(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sync_queue SET retry_count = retry_count + 1 WHERE id = ?`, id)
	return err
}

// PurgeExceeding removes items whose retry count is above maxRetries.
func (s *EncryptedStore) PurgeExceeding(ctx context.Context, maxRetries int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE retry_count > ?`, maxRetries)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountPending returns the queue length.
func (s *EncryptedStore) CountPending(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&n)
	return n, err
}

// --- domain.PreferenceStore implementation ---

func (s *EncryptedStore) getPref(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM prefs WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s *EncryptedStore) setPref(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO prefs (key, value) VALUES (?, ?)`, key, value)
	return err
}

func (s *EncryptedStore) getIntPref(ctx context.Context, key string) (int, error) {
	v, err := s.getPref(ctx, key)
	if err != nil || v == "" {
		return 0, err
	}
	return strconv.Atoi(v)
}

// ActiveSessionID returns the active-session pointer, "" when unset.
func (s *EncryptedStore) ActiveSessionID(ctx context.Context) (string, error) {
	return s.getPref(ctx, prefActiveSession)
}

// SetActiveSessionID sets the pointer; "" clears it.
func (s *EncryptedStore) SetActiveSessionID(ctx context.Context, id string) error {
	return s.setPref(ctx, prefActiveSession, id)
}

// AddRewards adds to the running totals in one transaction.
func (s *EncryptedStore) AddRewards(ctx context.Context, r domain.Reward) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for key, delta := range map[string]int{prefTotalXP: r.XP, prefTotalCoins: r.Coins} {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO prefs (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = CAST(CAST(value AS INTEGER) + ? AS TEXT)`,
			key, strconv.Itoa(delta), delta)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Totals returns the running XP and coin totals.
func (s *EncryptedStore) Totals(ctx context.Context) (domain.Reward, error) {
	xp, err := s.getIntPref(ctx, prefTotalXP)
	if err != nil {
		return domain.Reward{}, err
	}
	coins, err := s.getIntPref(ctx, prefTotalCoins)
	if err != nil {
		return domain.Reward{}, err
	}
	return domain.Reward{XP: xp, Coins: coins}, nil
}

// StreakFreeze returns the freeze token state.
func (s *EncryptedStore) StreakFreeze(ctx context.Context) (domain.StreakFreeze, error) {
	avail, err := s.getPref(ctx, prefFreezeAvail)
	if err != nil {
		return domain.StreakFreeze{}, err
	}
	granted, err := s.getPref(ctx, prefFreezeGranted)
	if err != nil {
		return domain.StreakFreeze{}, err
	}
	// A new install starts with one freeze.
	return domain.StreakFreeze{Available: avail == "" || avail == "true", LastGrantDate: granted}, nil
}

// SetStreakFreeze stores the freeze token state.
func (s *EncryptedStore) SetStreakFreeze(ctx context.Context, f domain.StreakFreeze) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO prefs (key, value) VALUES (?, ?)`,
		prefFreezeAvail, strconv.FormatBool(f.Available)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO prefs (key, value) VALUES (?, ?)`,
		prefFreezeGranted, f.LastGrantDate); err != nil {
		return err
	}
	return tx.Commit()
}

// Heartbeat returns the last daemon heartbeat, zero if never set.
func (s *EncryptedStore) Heartbeat(ctx context.Context) (time.Time, error) {
	v, err := s.getPref(ctx, prefHeartbeat)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

// SetHeartbeat records a daemon heartbeat.
func (s *EncryptedStore) SetHeartbeat(ctx context.Context, at time.Time) error {
	return s.setPref(ctx, prefHeartbeat, strconv.FormatInt(at.UnixMilli(), 10))
}

// OnboardingCompleted reports whether first-run setup finished.
func (s *EncryptedStore) OnboardingCompleted(ctx context.Context) (bool, error) {
	v, err := s.getPref(ctx, prefOnboardingDone)
	return v == "true", err
}

// SetOnboardingCompleted marks first-run setup as finished.
func (s *EncryptedStore) SetOnboardingCompleted(ctx context.Context, done bool) error {
	return s.setPref(ctx, prefOnboardingDone, strconv.FormatBool(done))
}

// --- domain.SecretStore implementation ---

// GetSecret retrieves a secret by key.
func (s *EncryptedStore) GetSecret(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM secrets WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("secret %q: %w", key, domain.ErrNotFound)
	}
	return value, err
}

// SetSecret stores a secret.
func (s *EncryptedStore) SetSecret(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO secrets (key, value, created_at) VALUES (?, ?, ?)`,
		key, value, time.Now().Unix())
	return err
}

// DeleteSecret removes a secret. Missing keys are not an error.
func (s *EncryptedStore) DeleteSecret(key string) error {
	_, err := s.db.Exec(`DELETE FROM secrets WHERE key = ?`, key)
	return err
}

var (
	_ domain.SessionStore    = (*EncryptedStore)(nil)
	_ domain.IntentionStore  = (*EncryptedStore)(nil)
	_ domain.SyncQueueStore  = (*EncryptedStore)(nil)
	_ domain.PreferenceStore = (*EncryptedStore)(nil)
	_ domain.SecretStore     = (*EncryptedStore)(nil)
)
