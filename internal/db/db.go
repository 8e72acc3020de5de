package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// TimeLayout is the fixed-width UTC layout used for every stored timestamp,
// so that lexical order in SQL equals chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps a sql.DB with handoff-specific helpers.
type DB struct {
	*sql.DB
	path string
}

// Open creates or opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Callers must close rows before issuing the next statement.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	d := &DB{DB: sqlDB, path: path}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// OpenMemory creates an in-memory SQLite database (useful for testing).
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	// Every pooled connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)

	d := &DB{DB: sqlDB, path: ":memory:"}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// Path returns the file the database was opened from.
func (d *DB) Path() string { return d.path }

// migrate runs all schema migrations.
func (d *DB) migrate() error {
	_, err := d.Exec(schema)
	return err
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a value written by FormatTime.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// ParseNullTime parses an optional timestamp column.
func ParseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := ParseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// NullTime converts an optional time to a column value.
func NullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return FormatTime(*t)
}

// IsUniqueViolation reports whether err came from a UNIQUE constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// schema contains the full database schema. New tables are added here.
const schema = `
CREATE TABLE IF NOT EXISTS knowledge_entries (
    id TEXT PRIMARY KEY,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT 'general',
    tags TEXT NOT NULL DEFAULT '[]',
    source TEXT NOT NULL DEFAULT 'admin' CHECK(source IN ('seed','human-resolved','admin')),
    confidence REAL NOT NULL DEFAULT 0.8 CHECK(confidence >= 0 AND confidence <= 1),
    usage_count INTEGER NOT NULL DEFAULT 0,
    last_used_at TEXT,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_by TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_knowledge_category ON knowledge_entries(is_active, category, confidence DESC, usage_count DESC);
CREATE INDEX IF NOT EXISTS idx_knowledge_source ON knowledge_entries(source);

CREATE VIRTUAL TABLE IF NOT EXISTS knowledge_fts USING fts5(
    question, answer, tags,
    content='knowledge_entries', content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS knowledge_fts_ai AFTER INSERT ON knowledge_entries BEGIN
    INSERT INTO knowledge_fts(rowid, question, answer, tags)
    VALUES (new.rowid, new.question, new.answer, new.tags);
END;

CREATE TRIGGER IF NOT EXISTS knowledge_fts_ad AFTER DELETE ON knowledge_entries BEGIN
    INSERT INTO knowledge_fts(knowledge_fts, rowid, question, answer, tags)
    VALUES ('delete', old.rowid, old.question, old.answer, old.tags);
END;

CREATE TRIGGER IF NOT EXISTS knowledge_fts_au AFTER UPDATE OF question, answer, tags ON knowledge_entries BEGIN
    INSERT INTO knowledge_fts(knowledge_fts, rowid, question, answer, tags)
    VALUES ('delete', old.rowid, old.question, old.answer, old.tags);
    INSERT INTO knowledge_fts(rowid, question, answer, tags)
    VALUES (new.rowid, new.question, new.answer, new.tags);
END;

CREATE TABLE IF NOT EXISTS help_requests (
    id TEXT PRIMARY KEY,
    question TEXT NOT NULL,
    caller_id TEXT NOT NULL,
    caller_name TEXT NOT NULL DEFAULT '',
    session_id TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending','in_progress','resolved','timeout')),
    human_response TEXT,
    resolver_id TEXT,
    claimed_by TEXT,
    attempted_search INTEGER NOT NULL DEFAULT 0,
    confidence_score REAL,
    context TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    timeout_at TEXT NOT NULL,
    resolved_at TEXT,
    CHECK((status = 'resolved') = (resolved_at IS NOT NULL))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_help_requests_open_session
    ON help_requests(session_id) WHERE status IN ('pending','in_progress');
CREATE INDEX IF NOT EXISTS idx_help_requests_status ON help_requests(status, created_at);
CREATE INDEX IF NOT EXISTS idx_help_requests_caller ON help_requests(caller_id, created_at);
CREATE INDEX IF NOT EXISTS idx_help_requests_timeout ON help_requests(status, timeout_at);

CREATE TABLE IF NOT EXISTS call_sessions (
    session_id TEXT PRIMARY KEY,
    room_name TEXT NOT NULL DEFAULT '',
    caller_id TEXT NOT NULL,
    caller_name TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active','completed','failed')),
    transcript TEXT NOT NULL DEFAULT '',
    duration_seconds INTEGER,
    started_at TEXT NOT NULL,
    ended_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_call_sessions_status ON call_sessions(status, started_at);
CREATE INDEX IF NOT EXISTS idx_call_sessions_caller ON call_sessions(caller_id, started_at);

CREATE TABLE IF NOT EXISTS session_help_requests (
    session_id TEXT NOT NULL REFERENCES call_sessions(session_id) ON DELETE CASCADE,
    request_id TEXT NOT NULL,
    linked_at TEXT NOT NULL,
    PRIMARY KEY(session_id, request_id)
);

CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL CHECK(type IN ('supervisor_alert','caller_answer','caller_timeout')),
    channel TEXT NOT NULL DEFAULT 'log',
    recipient TEXT NOT NULL DEFAULT '',
    request_id TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL,
    message TEXT NOT NULL DEFAULT '',
    delivered INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_request ON notifications(request_id);

CREATE TABLE IF NOT EXISTS audit_entries (
    id TEXT PRIMARY KEY,
    timestamp TEXT NOT NULL,
    actor_type TEXT NOT NULL CHECK(actor_type IN ('caller','supervisor','system','admin')),
    actor_id TEXT NOT NULL DEFAULT '',
    action TEXT NOT NULL,
    subject_type TEXT NOT NULL,
    subject_id TEXT NOT NULL DEFAULT '',
    summary TEXT NOT NULL DEFAULT '',
    previous_value TEXT,
    new_value TEXT
);

CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_entries(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_subject ON audit_entries(subject_type, subject_id);
CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_entries(action);
`
