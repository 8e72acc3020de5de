package escalation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/handoff/internal/apperr"
	"github.com/ziadkadry99/handoff/internal/db"
)

// Ledger owns help requests and their state machine:
//
//	pending -> in_progress -> resolved | timeout
//	pending -> resolved | timeout
//
// Every transition out of an open state is a single compare-and-set UPDATE,
// so a request is resolved or timed out exactly once.
type Ledger struct {
	db     *db.DB
	window time.Duration
	now    func() time.Time
}

// NewLedger creates a ledger. window <= 0 selects DefaultWindow.
func NewLedger(database *db.DB, window time.Duration) *Ledger {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Ledger{db: database, window: window, now: time.Now}
}

// Window returns the escalation window.
func (l *Ledger) Window() time.Duration { return l.window }

const requestColumns = `id, question, caller_id, caller_name, session_id, status, human_response, resolver_id,
	claimed_by, attempted_search, confidence_score, context, created_at, updated_at, timeout_at, resolved_at`

// Create opens a new pending request.
func (l *Ledger) Create(ctx context.Context, in CreateInput) (*HelpRequest, error) {
	in.Question = strings.TrimSpace(in.Question)
	in.CallerID = strings.TrimSpace(in.CallerID)
	in.SessionID = strings.TrimSpace(in.SessionID)
	switch {
	case in.Question == "":
		return nil, apperr.Validation("question is required")
	case in.CallerID == "":
		return nil, apperr.Validation("caller_id is required")
	case in.SessionID == "":
		return nil, apperr.Validation("session_id is required")
	}
	if c := in.ConfidenceScore; c != nil && (*c < 0 || *c > 1) {
		return nil, apperr.Validation("confidence_score must be between 0 and 1")
	}

	now := l.now().UTC()
	req := HelpRequest{
		ID:         uuid.New().String(),
		Question:   in.Question,
		CallerID:   in.CallerID,
		CallerName: strings.TrimSpace(in.CallerName),
		SessionID:  in.SessionID,
		Status:     StatusPending,
		Metadata: Metadata{
			AttemptedSearch: in.AttemptedSearch,
			ConfidenceScore: in.ConfidenceScore,
			Context:         in.Context,
		},
		CreatedAt: now,
		UpdatedAt: now,
		TimeoutAt: now.Add(l.window),
	}

	var confidence any
	if in.ConfidenceScore != nil {
		confidence = *in.ConfidenceScore
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO help_requests (id, question, caller_id, caller_name, session_id, status, attempted_search,
		   confidence_score, context, created_at, updated_at, timeout_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.Question, req.CallerID, req.CallerName, req.SessionID, req.Status, boolInt(in.AttemptedSearch),
		confidence, in.Context, db.FormatTime(now), db.FormatTime(now), db.FormatTime(req.TimeoutAt),
	)
	if db.IsUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", apperr.ErrDuplicateSession, req.SessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("inserting help request: %w", err)
	}
	return &req, nil
}

// Get retrieves a request by id.
func (l *Ledger) Get(ctx context.Context, id string) (*HelpRequest, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM help_requests WHERE id = ?`, id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("help request", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting help request: %w", err)
	}
	return req, nil
}

// Resolve moves an open request to resolved with the human's answer.
func (l *Ledger) Resolve(ctx context.Context, id, response, resolverID string) (*HelpRequest, error) {
	response = strings.TrimSpace(response)
	resolverID = strings.TrimSpace(resolverID)
	if response == "" {
		return nil, apperr.Validation("human_response is required")
	}
	if resolverID == "" {
		return nil, apperr.Validation("resolver_id is required")
	}

	now := db.FormatTime(l.now())
	result, err := l.db.ExecContext(ctx,
		`UPDATE help_requests
		 SET status = ?, human_response = ?, resolver_id = ?, resolved_at = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		StatusResolved, response, resolverID, now, now, id, StatusPending, StatusInProgress,
	)
	if err != nil {
		return nil, fmt.Errorf("resolving help request: %w", err)
	}
	if err := l.checkTransition(ctx, result, id, "resolve"); err != nil {
		return nil, err
	}
	return l.Get(ctx, id)
}

// Claim marks a pending request as being worked on by resolverID. It is
// advisory: an in-progress request can still be resolved by anyone.
func (l *Ledger) Claim(ctx context.Context, id, resolverID string) (*HelpRequest, error) {
	resolverID = strings.TrimSpace(resolverID)
	if resolverID == "" {
		return nil, apperr.Validation("resolver_id is required")
	}
	result, err := l.db.ExecContext(ctx,
		`UPDATE help_requests SET status = ?, claimed_by = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		StatusInProgress, resolverID, db.FormatTime(l.now()), id, StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("claiming help request: %w", err)
	}
	if err := l.checkTransition(ctx, result, id, "claim"); err != nil {
		return nil, err
	}
	return l.Get(ctx, id)
}

// checkTransition turns a compare-and-set that touched no rows into
// NotFound or InvalidState.
func (l *Ledger) checkTransition(ctx context.Context, result sql.Result, id, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 1 {
		return nil
	}
	current, err := l.Get(ctx, id)
	if err != nil {
		return err
	}
	return apperr.InvalidState("cannot %s request %s in status %s", op, id, current.Status)
}

// ListPending returns open requests, newest first.
func (l *Ledger) ListPending(ctx context.Context) ([]HelpRequest, error) {
	return l.query(ctx,
		`SELECT `+requestColumns+` FROM help_requests WHERE status IN (?, ?) ORDER BY created_at DESC, id`,
		StatusPending, StatusInProgress)
}

// ListHistory returns requests matching the filter, newest first, and the
// total number of matches.
func (l *Ledger) ListHistory(ctx context.Context, f HistoryFilter) (*HistoryPage, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("unknown status %q", f.Status)
	}
	if f.Limit <= 0 {
		f.Limit = defaultHistoryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	where := " WHERE 1=1"
	args := []any{}
	if f.Status != "" {
		where += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.CallerID != "" {
		where += " AND caller_id = ?"
		args = append(args, f.CallerID)
	}

	var total int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM help_requests`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting help requests: %w", err)
	}

	reqs, err := l.query(ctx,
		`SELECT `+requestColumns+` FROM help_requests`+where+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, err
	}
	if reqs == nil {
		reqs = []HelpRequest{}
	}
	return &HistoryPage{Requests: reqs, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// Stats counts requests per status.
func (l *Ledger) Stats(ctx context.Context) (*Stats, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM help_requests GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting help requests: %w", err)
	}
	defer rows.Close()

	var s Stats
	for rows.Next() {
		var status Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning stats: %w", err)
		}
		s.Total += n
		switch status {
		case StatusPending:
			s.Pending = n
		case StatusInProgress:
			s.InProgress = n
		case StatusResolved:
			s.Resolved = n
		case StatusTimedOut:
			s.TimedOut = n
		}
	}
	return &s, rows.Err()
}

// SweepTimeouts moves every open request whose deadline is at or before now
// to timeout, and returns only the requests this call transitioned. A
// request resolved concurrently is skipped.
func (l *Ledger) SweepTimeouts(ctx context.Context, now time.Time) ([]HelpRequest, error) {
	due, err := l.query(ctx,
		`SELECT `+requestColumns+` FROM help_requests
		 WHERE status IN (?, ?) AND timeout_at <= ? ORDER BY timeout_at, id`,
		StatusPending, StatusInProgress, db.FormatTime(now))
	if err != nil {
		return nil, err
	}

	stamp := db.FormatTime(now)
	var (
		swept []HelpRequest
		errs  []error
	)
	for _, req := range due {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		result, err := l.db.ExecContext(ctx,
			`UPDATE help_requests SET status = ?, updated_at = ?
			 WHERE id = ? AND status IN (?, ?)`,
			StatusTimedOut, stamp, req.ID, StatusPending, StatusInProgress)
		if err != nil {
			errs = append(errs, fmt.Errorf("timing out %s: %w", req.ID, err))
			continue
		}
		if n, _ := result.RowsAffected(); n == 1 {
			req.Status = StatusTimedOut
			req.UpdatedAt = now.UTC()
			swept = append(swept, req)
		}
	}
	return swept, errors.Join(errs...)
}

func (l *Ledger) query(ctx context.Context, query string, args ...any) ([]HelpRequest, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying help requests: %w", err)
	}
	defer rows.Close()

	var out []HelpRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning help request: %w", err)
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(sc scanner) (*HelpRequest, error) {
	var (
		r                                       HelpRequest
		response, resolver, claimed, resolvedAt sql.NullString
		confidence                              sql.NullFloat64
		attempted                               int
		createdAt, updatedAt, timeoutAt         string
	)
	err := sc.Scan(&r.ID, &r.Question, &r.CallerID, &r.CallerName, &r.SessionID, &r.Status, &response, &resolver,
		&claimed, &attempted, &confidence, &r.Metadata.Context, &createdAt, &updatedAt, &timeoutAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	r.HumanResponse = response.String
	r.ResolverID = resolver.String
	r.ClaimedBy = claimed.String
	r.Metadata.AttemptedSearch = attempted == 1
	if confidence.Valid {
		c := confidence.Float64
		r.Metadata.ConfidenceScore = &c
	}
	if r.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if r.UpdatedAt, err = db.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if r.TimeoutAt, err = db.ParseTime(timeoutAt); err != nil {
		return nil, fmt.Errorf("parsing timeout_at: %w", err)
	}
	if r.ResolvedAt, err = db.ParseNullTime(resolvedAt); err != nil {
		return nil, fmt.Errorf("parsing resolved_at: %w", err)
	}
	return &r, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
