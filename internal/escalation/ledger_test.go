package escalation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ziadkadry99/handoff/internal/apperr"
	"github.com/ziadkadry99/handoff/internal/db"
)

func setupLedger(t *testing.T) (*Ledger, *fakeClock) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	clock := &fakeClock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	l := NewLedger(database, 30*time.Minute)
	l.now = clock.Now
	return l, clock
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func mustCreate(t *testing.T, l *Ledger, session string) *HelpRequest {
	t.Helper()
	req, err := l.Create(context.Background(), CreateInput{
		Question:  "Do you do keratin treatments?",
		CallerID:  "+15550001",
		SessionID: session,
	})
	if err != nil {
		t.Fatalf("Create(%s): %v", session, err)
	}
	return req
}

func TestCreate(t *testing.T) {
	l, clock := setupLedger(t)
	score := 0.31

	req, err := l.Create(context.Background(), CreateInput{
		Question:        " Do you do keratin treatments? ",
		CallerID:        "+15550001",
		CallerName:      "Dana",
		SessionID:       "s1",
		Context:         "caller asked twice",
		ConfidenceScore: &score,
		AttemptedSearch: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.Status != StatusPending {
		t.Errorf("status = %s, want pending", req.Status)
	}
	if !req.TimeoutAt.Equal(clock.Now().Add(30 * time.Minute)) {
		t.Errorf("timeout_at = %v", req.TimeoutAt)
	}

	got, err := l.Get(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Question != "Do you do keratin treatments?" || got.CallerName != "Dana" {
		t.Errorf("unexpected request %+v", got)
	}
	if !got.Metadata.AttemptedSearch || got.Metadata.ConfidenceScore == nil || *got.Metadata.ConfidenceScore != score {
		t.Errorf("unexpected metadata %+v", got.Metadata)
	}
	if got.ResolvedAt != nil {
		t.Error("expected resolved_at to be unset")
	}
}

func TestCreateValidation(t *testing.T) {
	l, _ := setupLedger(t)
	bad := 1.2
	tests := []struct {
		name string
		in   CreateInput
	}{
		{"blank question", CreateInput{Question: " ", CallerID: "c", SessionID: "s"}},
		{"blank caller", CreateInput{Question: "q", CallerID: "", SessionID: "s"}},
		{"blank session", CreateInput{Question: "q", CallerID: "c", SessionID: ""}},
		{"confidence out of range", CreateInput{Question: "q", CallerID: "c", SessionID: "s", ConfidenceScore: &bad}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.Create(context.Background(), tt.in); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestCreateDuplicateSession(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()

	first := mustCreate(t, l, "s1")
	_, err := l.Create(ctx, CreateInput{Question: "Another?", CallerID: "+15550001", SessionID: "s1"})
	if !errors.Is(err, apperr.ErrDuplicateSession) {
		t.Fatalf("expected ErrDuplicateSession, got %v", err)
	}

	// In-progress requests still hold the session.
	if _, err := l.Claim(ctx, first.ID, "sup1"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if _, err := l.Create(ctx, CreateInput{Question: "Another?", CallerID: "c", SessionID: "s1"}); !errors.Is(err, apperr.ErrDuplicateSession) {
		t.Fatalf("expected ErrDuplicateSession while in progress, got %v", err)
	}

	if _, err := l.Resolve(ctx, first.ID, "Yes", "sup1"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := l.Create(ctx, CreateInput{Question: "Another?", CallerID: "c", SessionID: "s1"}); err != nil {
		t.Errorf("expected create after resolution to succeed, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	l, clock := setupLedger(t)
	ctx := context.Background()
	req := mustCreate(t, l, "s1")

	clock.Advance(5 * time.Minute)
	got, err := l.Resolve(ctx, req.ID, "Yes, $120", "sup1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Status != StatusResolved || got.HumanResponse != "Yes, $120" || got.ResolverID != "sup1" {
		t.Errorf("unexpected request %+v", got)
	}
	if got.ResolvedAt == nil || !got.ResolvedAt.Equal(clock.Now()) {
		t.Errorf("resolved_at = %v, want %v", got.ResolvedAt, clock.Now())
	}

	_, err = l.Resolve(ctx, req.ID, "No", "sup2")
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("second resolve: expected ErrInvalidState, got %v", err)
	}
	again, _ := l.Get(ctx, req.ID)
	if again.HumanResponse != "Yes, $120" {
		t.Errorf("second resolve changed the answer to %q", again.HumanResponse)
	}
}

func TestResolveErrors(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()
	req := mustCreate(t, l, "s1")

	if _, err := l.Resolve(ctx, "missing", "Yes", "sup1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := l.Resolve(ctx, req.ID, "  ", "sup1"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected ErrValidation for blank response, got %v", err)
	}
	if _, err := l.Resolve(ctx, req.ID, "Yes", ""); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected ErrValidation for blank resolver, got %v", err)
	}
}

func TestClaim(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()
	req := mustCreate(t, l, "s1")

	claimed, err := l.Claim(ctx, req.ID, "sup1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed.Status != StatusInProgress || claimed.ClaimedBy != "sup1" {
		t.Errorf("unexpected request %+v", claimed)
	}
	if _, err := l.Claim(ctx, req.ID, "sup2"); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on second claim, got %v", err)
	}
	if _, err := l.Claim(ctx, "missing", "sup2"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	resolved, err := l.Resolve(ctx, req.ID, "Yes", "sup2")
	if err != nil {
		t.Fatalf("Resolve after claim: %v", err)
	}
	if resolved.ResolverID != "sup2" {
		t.Errorf("resolver = %s, want sup2", resolved.ResolverID)
	}
}

func TestSweepTimeouts(t *testing.T) {
	l, clock := setupLedger(t)
	ctx := context.Background()

	old := mustCreate(t, l, "s1")
	clock.Advance(10 * time.Minute)
	claimed := mustCreate(t, l, "s2")
	l.Claim(ctx, claimed.ID, "sup1")
	clock.Advance(10 * time.Minute)
	young := mustCreate(t, l, "s3")

	swept, err := l.SweepTimeouts(ctx, clock.Now().Add(9*time.Minute))
	if err != nil {
		t.Fatalf("SweepTimeouts: %v", err)
	}
	if len(swept) != 0 {
		t.Fatalf("swept %d before any deadline", len(swept))
	}

	// Deadline of the second request is exactly now: inclusive.
	swept, err = l.SweepTimeouts(ctx, claimed.TimeoutAt)
	if err != nil {
		t.Fatalf("SweepTimeouts: %v", err)
	}
	if len(swept) != 2 || swept[0].ID != old.ID || swept[1].ID != claimed.ID {
		t.Fatalf("unexpected sweep %+v", swept)
	}
	for _, r := range swept {
		if r.Status != StatusTimedOut {
			t.Errorf("swept request %s has status %s", r.ID, r.Status)
		}
	}

	again, _ := l.SweepTimeouts(ctx, claimed.TimeoutAt)
	if len(again) != 0 {
		t.Errorf("second sweep returned %d requests", len(again))
	}

	if _, err := l.Resolve(ctx, old.ID, "late", "sup1"); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState resolving a timed out request, got %v", err)
	}
	got, _ := l.Get(ctx, young.ID)
	if got.Status != StatusPending {
		t.Errorf("young request status = %s", got.Status)
	}
}

func TestListPendingAndHistory(t *testing.T) {
	l, clock := setupLedger(t)
	ctx := context.Background()

	var ids []string
	for _, s := range []string{"s1", "s2", "s3", "s4"} {
		ids = append(ids, mustCreate(t, l, s).ID)
		clock.Advance(time.Minute)
	}
	l.Resolve(ctx, ids[0], "Yes", "sup1")
	l.Claim(ctx, ids[1], "sup1")

	pending, err := l.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 3 || pending[0].ID != ids[3] || pending[2].ID != ids[1] {
		t.Errorf("unexpected pending order: %v", requestIDs(pending))
	}

	page, err := l.ListHistory(ctx, HistoryFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if page.Total != 4 || len(page.Requests) != 2 || page.Requests[0].ID != ids[2] {
		t.Errorf("unexpected page total=%d ids=%v", page.Total, requestIDs(page.Requests))
	}

	resolved, _ := l.ListHistory(ctx, HistoryFilter{Status: StatusResolved})
	if resolved.Total != 1 || resolved.Limit != 50 {
		t.Errorf("resolved total=%d limit=%d", resolved.Total, resolved.Limit)
	}

	byCaller, _ := l.ListHistory(ctx, HistoryFilter{CallerID: "nobody"})
	if byCaller.Total != 0 || byCaller.Requests == nil {
		t.Errorf("expected empty non-nil page, got %+v", byCaller)
	}

	if _, err := l.ListHistory(ctx, HistoryFilter{Status: "closed"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected ErrValidation for unknown status, got %v", err)
	}

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 4 || stats.Pending != 2 || stats.InProgress != 1 || stats.Resolved != 1 || stats.TimedOut != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func requestIDs(reqs []HelpRequest) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.ID
	}
	return out
}
