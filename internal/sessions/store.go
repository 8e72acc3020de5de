package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ziadkadry99/handoff/internal/apperr"
	"github.com/ziadkadry99/handoff/internal/db"
)

// Store persists call sessions and their links to help requests. It
// implements escalation.SessionLinker.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

const columns = `session_id, room_name, caller_id, caller_name, status, transcript, duration_seconds, started_at, ended_at`

// Start records a new active call.
func (s *Store) Start(ctx context.Context, in StartInput) (*Session, error) {
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.RoomName = strings.TrimSpace(in.RoomName)
	in.CallerID = strings.TrimSpace(in.CallerID)
	if in.SessionID == "" || in.RoomName == "" || in.CallerID == "" {
		return nil, apperr.Validation("session_id, room_name and caller_id are required")
	}

	sess := &Session{
		SessionID:      in.SessionID,
		RoomName:       in.RoomName,
		CallerID:       in.CallerID,
		CallerName:     strings.TrimSpace(in.CallerName),
		Status:         StatusActive,
		StartedAt:      s.now().UTC(),
		HelpRequestIDs: []string{},
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_sessions (session_id, room_name, caller_id, caller_name, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.SessionID, sess.RoomName, sess.CallerID, sess.CallerName, string(sess.Status), db.FormatTime(sess.StartedAt),
	)
	if db.IsUniqueViolation(err) {
		return nil, apperr.InvalidState("call session %s already exists", sess.SessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("inserting call session: %w", err)
	}
	return sess, nil
}

// End completes an active call, storing its duration and transcript.
func (s *Store) End(ctx context.Context, sessionID, transcript string) (*Session, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != StatusActive {
		return nil, apperr.InvalidState("call session %s already ended", sessionID)
	}

	ended := s.now().UTC()
	duration := int(ended.Sub(sess.StartedAt) / time.Second)
	if duration < 0 {
		duration = 0
	}
	if transcript == "" {
		transcript = sess.Transcript
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE call_sessions
		SET status = ?, ended_at = ?, duration_seconds = ?, transcript = ?
		WHERE session_id = ? AND status = ?`,
		string(StatusCompleted), db.FormatTime(ended), duration, transcript,
		sessionID, string(StatusActive),
	)
	if err != nil {
		return nil, fmt.Errorf("ending call session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.InvalidState("call session %s already ended", sessionID)
	}
	return s.Get(ctx, sessionID)
}

// UpdateStatus sets the status of a call.
func (s *Store) UpdateStatus(ctx context.Context, sessionID string, status Status) (*Session, error) {
	if !status.Valid() {
		return nil, apperr.Validation("invalid status %q: must be active, completed or failed", status)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE call_sessions SET status = ? WHERE session_id = ?`, string(status), sessionID)
	if err != nil {
		return nil, fmt.Errorf("updating call status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.NotFound("call session", sessionID)
	}
	return s.Get(ctx, sessionID)
}

// Get returns a session with the ids of its help requests.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM call_sessions WHERE session_id = ?`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("call session", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("getting call session: %w", err)
	}

	ids, err := s.requestIDs(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.HelpRequestIDs = ids
	return sess, nil
}

func (s *Store) requestIDs(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id FROM session_help_requests
		WHERE session_id = ? ORDER BY linked_at, request_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying linked help requests: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning linked help request: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// List returns sessions newest first with the total matching count.
func (s *Store) List(ctx context.Context, f ListFilter) (*Page, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("invalid status %q", f.Status)
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var (
		clauses []string
		args    []any
	)
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.CallerID != "" {
		clauses = append(clauses, "caller_id = ?")
		args = append(args, f.CallerID)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	page := &Page{Calls: []Session{}, Limit: f.Limit, Offset: f.Offset}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM call_sessions"+where, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("counting call sessions: %w", err)
	}

	query := "SELECT " + columns + " FROM call_sessions" + where +
		fmt.Sprintf(" ORDER BY started_at DESC, session_id LIMIT %d OFFSET %d", f.Limit, f.Offset)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying call sessions: %w", err)
	}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning call session: %w", err)
		}
		page.Calls = append(page.Calls, *sess)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range page.Calls {
		ids, err := s.requestIDs(ctx, page.Calls[i].SessionID)
		if err != nil {
			return nil, err
		}
		page.Calls[i].HelpRequestIDs = ids
	}
	return page, nil
}

// Stats summarises every recorded call.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var (
		st  Stats
		avg sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(status = 'active'), 0),
			COALESCE(SUM(status = 'completed'), 0),
			COALESCE(SUM(status = 'failed'), 0),
			AVG(duration_seconds)
		FROM call_sessions`).Scan(&st.TotalCalls, &st.ActiveCalls, &st.CompletedCalls, &st.FailedCalls, &avg)
	if err != nil {
		return nil, fmt.Errorf("computing call stats: %w", err)
	}
	if avg.Valid {
		st.AverageDuration = avg.Float64
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM help_requests`).Scan(&st.TotalHelpRequests); err != nil {
		return nil, fmt.Errorf("counting help requests: %w", err)
	}
	if st.TotalCalls > 0 {
		rate := float64(st.TotalHelpRequests) / float64(st.TotalCalls) * 100
		st.HelpRequestRate = math.Round(rate*100) / 100
	}
	return &st, nil
}

// LinkHelpRequest records that a call produced a help request. Linking to an
// unknown session is a no-op.
func (s *Store) LinkHelpRequest(ctx context.Context, sessionID, requestID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO session_help_requests (session_id, request_id, linked_at)
		SELECT session_id, ?, ? FROM call_sessions WHERE session_id = ?`,
		requestID, db.FormatTime(s.now()), sessionID,
	)
	if err != nil {
		return fmt.Errorf("linking help request %s to session %s: %w", requestID, sessionID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (*Session, error) {
	var (
		sess     Session
		status   string
		duration sql.NullInt64
		started  string
		ended    sql.NullString
	)
	err := sc.Scan(&sess.SessionID, &sess.RoomName, &sess.CallerID, &sess.CallerName,
		&status, &sess.Transcript, &duration, &started, &ended)
	if err != nil {
		return nil, err
	}
	sess.Status = Status(status)
	if duration.Valid {
		d := int(duration.Int64)
		sess.DurationSeconds = &d
	}
	if sess.StartedAt, err = db.ParseTime(started); err != nil {
		return nil, err
	}
	if sess.EndedAt, err = db.ParseNullTime(ended); err != nil {
		return nil, err
	}
	sess.HelpRequestIDs = []string{}
	return &sess, nil
}
