package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/a11yscan/internal/events"
	"github.com/nao1215/a11yscan/internal/model"
	"github.com/nao1215/a11yscan/internal/session"
)

// FileName is the name of the database file inside the data directory.
const FileName = "a11yscan.db"

// SessionDB provides SQLite-based storage for sessions and their events.
// A single connection serializes writers, so Save is atomic per session.
type SessionDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

var (
	_ session.Store       = (*SessionDB)(nil)
	_ session.EventLoader = (*SessionDB)(nil)
	_ events.Sink         = (*SessionDB)(nil)
)

// Options configures SessionDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a SessionDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*SessionDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rwc"
	if !opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &SessionDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sdb, nil
}

// Path returns the database file path.
func (sdb *SessionDB) Path() string {
	return sdb.dbPath
}

// Close closes the database connection.
func (sdb *SessionDB) Close() error {
	return sdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (sdb *SessionDB) createTables() error {
	schema := `
	-- One row per session; record_json is the full session record
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		seed_url TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		issues_summary TEXT,
		record_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
	CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);

	-- Events are append-only and ordered by sequence within a session
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		type TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		event_json TEXT NOT NULL,
		UNIQUE(session_id, sequence)
	);

	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
	`

	_, err := sdb.db.ExecContext(context.Background(), schema)
	return err
}

// Save inserts or replaces a session record.
func (sdb *SessionDB) Save(ctx context.Context, s *model.Session) error {
	recordJSON, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	var summary sql.NullString
	if s.ScanResult != nil {
		summaryJSON, err := json.Marshal(s.ScanResult.IssuesBySeverity)
		if err != nil {
			return fmt.Errorf("failed to serialize issue summary: %w", err)
		}
		summary = sql.NullString{String: string(summaryJSON), Valid: true}
	}

	query := `
	INSERT INTO sessions (id, kind, status, seed_url, created_at, updated_at, issues_summary, record_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		status = excluded.status,
		seed_url = excluded.seed_url,
		updated_at = excluded.updated_at,
		issues_summary = excluded.issues_summary,
		record_json = excluded.record_json
	`

	_, err = sdb.db.ExecContext(ctx, query,
		s.ID,
		string(s.Kind),
		string(s.Status),
		seedURL(s),
		formatTimestamp(s.CreatedAt),
		formatTimestamp(s.UpdatedAt),
		summary,
		string(recordJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", s.ID, err)
	}
	return nil
}

// Load returns the session with the given id, or session.ErrNotFound.
func (sdb *SessionDB) Load(ctx context.Context, id string) (*model.Session, error) {
	var recordJSON string
	err := sdb.db.QueryRowContext(ctx, `SELECT record_json FROM sessions WHERE id = ?`, id).Scan(&recordJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return decodeSession(recordJSON)
}

// List returns every session, oldest first.
func (sdb *SessionDB) List(ctx context.Context) ([]*model.Session, error) {
	rows, err := sdb.db.QueryContext(ctx, `SELECT record_json FROM sessions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s, err := decodeSession(recordJSON)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Summary contains summary information about a session.
// It is used for listing sessions without loading full records.
type Summary struct {
	ID        string
	Kind      model.SessionKind
	Status    model.SessionStatus
	SeedURL   string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Issues holds the issue counts of completed scans, nil otherwise.
	Issues model.SeverityCounts
}

// Summaries returns session summaries, newest first. An empty kind lists
// every session.
func (sdb *SessionDB) Summaries(ctx context.Context, kind model.SessionKind) ([]Summary, error) {
	query := `
	SELECT id, kind, status, seed_url, created_at, updated_at, issues_summary
	FROM sessions
	WHERE 1=1
	`
	args := make([]any, 0)
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := sdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var results []Summary
	for rows.Next() {
		var sum Summary
		var seed, summaryJSON sql.NullString
		var created, updated string

		if err := rows.Scan(&sum.ID, &sum.Kind, &sum.Status, &seed, &created, &updated, &summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		sum.SeedURL = seed.String
		sum.CreatedAt = parseTimestamp(created)
		sum.UpdatedAt = parseTimestamp(updated)
		if summaryJSON.Valid && summaryJSON.String != "" {
			if err := json.Unmarshal([]byte(summaryJSON.String), &sum.Issues); err != nil {
				sum.Issues = nil
			}
		}
		results = append(results, sum)
	}
	return results, rows.Err()
}

// WriteEvent appends an event to the session's log. Events already stored
// under the same sequence are kept.
func (sdb *SessionDB) WriteEvent(ctx context.Context, e events.Event) error {
	eventJSON, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	query := `
	INSERT INTO events (id, session_id, sequence, type, timestamp, event_json)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT DO NOTHING
	`
	_, err = sdb.db.ExecContext(ctx, query,
		e.ID,
		e.SessionID,
		e.Sequence,
		string(e.Type),
		formatTimestamp(e.Timestamp),
		string(eventJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// Events returns the event log of a session in sequence order.
func (sdb *SessionDB) Events(ctx context.Context, sessionID string) ([]events.Event, error) {
	rows, err := sdb.db.QueryContext(ctx,
		`SELECT event_json FROM events WHERE session_id = ? ORDER BY sequence`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var log []events.Event
	for rows.Next() {
		var eventJSON string
		if err := rows.Scan(&eventJSON); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		var e events.Event
		if err := json.Unmarshal([]byte(eventJSON), &e); err != nil {
			return nil, fmt.Errorf("failed to parse event: %w", err)
		}
		log = append(log, e)
	}
	return log, rows.Err()
}

// Delete removes a session and its events.
func (sdb *SessionDB) Delete(ctx context.Context, id string) error {
	tx, err := sdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	return tx.Commit()
}

func decodeSession(recordJSON string) (*model.Session, error) {
	var s model.Session
	if err := json.Unmarshal([]byte(recordJSON), &s); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &s, nil
}

func seedURL(s *model.Session) string {
	switch {
	case s.Discovery != nil:
		return s.Discovery.SeedURL
	case len(s.Tasks) > 0:
		return s.Tasks[0].PageURL
	}
	return ""
}

// timestampLayout has a fixed width so that text order is time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
