package db

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenMemory(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	tables := []string{
		"knowledge_entries", "knowledge_fts", "help_requests",
		"call_sessions", "session_help_requests", "notifications", "audit_entries",
	}

	for _, table := range tables {
		var count int
		err := d.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestMigrateIdempotent(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	if err := d.migrate(); err != nil {
		t.Fatalf("second migrate() error: %v", err)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "handoff.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer d.Close()

	if d.Path() != path {
		t.Errorf("Path() = %q, want %q", d.Path(), path)
	}
}

func TestTimeRoundTripPreservesOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("EST", -5*3600))
	earlier := FormatTime(base)
	later := FormatTime(base.Add(time.Nanosecond))
	if !(earlier < later) {
		t.Errorf("expected %q < %q", earlier, later)
	}

	got, err := ParseTime(earlier)
	if err != nil {
		t.Fatalf("ParseTime() error: %v", err)
	}
	if !got.Equal(base) {
		t.Errorf("ParseTime() = %v, want %v", got, base)
	}
}

func insertRequest(d *DB, id, session, status string, resolvedAt any) error {
	now := FormatTime(time.Now())
	_, err := d.Exec(`INSERT INTO help_requests (id, question, caller_id, session_id, status, created_at, updated_at, timeout_at, resolved_at)
		VALUES (?, 'q', 'caller', ?, ?, ?, ?, ?, ?)`, id, session, status, now, now, now, resolvedAt)
	return err
}

func TestOpenSessionUniqueness(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	if err := insertRequest(d, "r1", "s1", "pending", nil); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err = insertRequest(d, "r2", "s1", "in_progress", nil)
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}

	// Closed requests do not hold the session.
	if _, err := d.Exec(`UPDATE help_requests SET status = 'timeout' WHERE id = 'r1'`); err != nil {
		t.Fatalf("closing r1: %v", err)
	}
	if err := insertRequest(d, "r3", "s1", "pending", nil); err != nil {
		t.Errorf("insert after close: %v", err)
	}
}

func TestResolvedAtCheck(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	if err := insertRequest(d, "r1", "s1", "resolved", nil); err == nil {
		t.Error("expected resolved without resolved_at to be rejected")
	}
	if err := insertRequest(d, "r2", "s2", "pending", FormatTime(time.Now())); err == nil {
		t.Error("expected pending with resolved_at to be rejected")
	}
}

func TestIsUniqueViolationNil(t *testing.T) {
	if IsUniqueViolation(nil) {
		t.Error("nil error is not a unique violation")
	}
	if IsUniqueViolation(errors.New("disk I/O error")) {
		t.Error("unrelated error is not a unique violation")
	}
}

func TestKnowledgeFTSTriggers(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	now := FormatTime(time.Now())
	if _, err := d.Exec(`INSERT INTO knowledge_entries (id, question, answer, created_at, updated_at)
		VALUES ('k1', 'What are your hours?', 'Nine to five', ?, ?)`, now, now); err != nil {
		t.Fatalf("insert: %v", err)
	}

	count := func(term string) int {
		var n int
		if err := d.QueryRow(`SELECT COUNT(*) FROM knowledge_fts WHERE knowledge_fts MATCH ?`, term).Scan(&n); err != nil {
			t.Fatalf("match %q: %v", term, err)
		}
		return n
	}
	if count(`"hours"`) != 1 {
		t.Error("expected inserted entry to be indexed")
	}

	if _, err := d.Exec(`UPDATE knowledge_entries SET question = 'Where do you park?' WHERE id = 'k1'`); err != nil {
		t.Fatalf("update: %v", err)
	}
	if count(`"hours"`) != 0 || count(`"park"`) != 1 {
		t.Error("expected index to follow the updated question")
	}
}
