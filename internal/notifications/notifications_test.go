package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/handoff/internal/apperr"
	"github.com/ziadkadry99/handoff/internal/db"
	"github.com/ziadkadry99/handoff/internal/escalation"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func testRequest() escalation.HelpRequest {
	return escalation.HelpRequest{
		ID:            "req-1",
		Question:      "Do you do keratin treatments?",
		CallerID:      "+15550001",
		CallerName:    "Dana",
		SessionID:     "s1",
		Status:        escalation.StatusResolved,
		HumanResponse: "Yes, $120",
	}
}

// tickingClock returns strictly increasing times so list order is stable.
func tickingClock() func() time.Time {
	t := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

type webhookRecorder struct {
	mu       sync.Mutex
	payloads []webhookPayload
	status   int
}

func (wr *webhookRecorder) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p webhookPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decoding webhook body: %v", err)
		}
		wr.mu.Lock()
		wr.payloads = append(wr.payloads, p)
		status := wr.status
		wr.mu.Unlock()
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
	}
}

func TestStoreCreateAndList(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	for i, typ := range []Type{TypeSupervisorAlert, TypeCallerAnswer, TypeCallerTimeout} {
		n := &Notification{
			Type:      typ,
			RequestID: "req-1",
			Title:     string(typ),
			Delivered: typ != TypeCallerTimeout,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Create(ctx, n); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if n.ID == "" {
			t.Error("expected generated ID")
		}
	}

	all, err := store.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].Type != TypeCallerTimeout {
		t.Fatalf("unexpected list %+v", all)
	}
	if all[0].Channel != ChannelLog {
		t.Errorf("default channel = %s, want log", all[0].Channel)
	}

	answers, _ := store.List(ctx, ListFilter{Type: TypeCallerAnswer})
	if len(answers) != 1 {
		t.Errorf("expected 1 caller answer, got %d", len(answers))
	}

	page, _ := store.List(ctx, ListFilter{Limit: 1, Offset: 1})
	if len(page) != 1 || page[0].Type != TypeCallerAnswer {
		t.Errorf("unexpected page %+v", page)
	}

	undelivered, err := store.Undelivered(ctx)
	if err != nil {
		t.Fatalf("Undelivered: %v", err)
	}
	if len(undelivered) != 1 {
		t.Fatalf("expected 1 undelivered, got %d", len(undelivered))
	}

	if err := store.MarkDelivered(ctx, undelivered[0].ID); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if rest, _ := store.Undelivered(ctx); len(rest) != 0 {
		t.Errorf("expected no undelivered notifications, got %d", len(rest))
	}
	if err := store.MarkDelivered(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDispatcherLogOnly(t *testing.T) {
	store := setupTestStore(t)
	d := NewDispatcher(store, Config{})
	d.now = tickingClock()
	ctx := context.Background()
	req := testRequest()

	if err := d.NotifyHuman(ctx, req); err != nil {
		t.Fatalf("NotifyHuman: %v", err)
	}
	if err := d.NotifyCallerResolved(ctx, req); err != nil {
		t.Fatalf("NotifyCallerResolved: %v", err)
	}
	if err := d.NotifyCallerTimedOut(ctx, req); err != nil {
		t.Fatalf("NotifyCallerTimedOut: %v", err)
	}

	list, _ := store.List(ctx, ListFilter{RequestID: req.ID})
	if len(list) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(list))
	}
	timeout, answer, alert := list[0], list[1], list[2]
	if alert.Type != TypeSupervisorAlert || alert.Message != req.Question || !strings.Contains(alert.Title, "Dana") {
		t.Errorf("unexpected alert %+v", alert)
	}
	if answer.Recipient != req.CallerID || answer.Message != "Yes, $120" {
		t.Errorf("unexpected answer %+v", answer)
	}
	if timeout.Message != TimeoutMessage {
		t.Errorf("timeout message = %q", timeout.Message)
	}
	for _, n := range list {
		if n.Channel != ChannelLog || !n.Delivered {
			t.Errorf("expected delivered log notification, got %+v", n)
		}
	}
}

func TestDispatcherWebhooks(t *testing.T) {
	store := setupTestStore(t)
	supervisor := &webhookRecorder{}
	caller := &webhookRecorder{}
	supSrv := httptest.NewServer(supervisor.handler(t))
	defer supSrv.Close()
	callerSrv := httptest.NewServer(caller.handler(t))
	defer callerSrv.Close()

	d := NewDispatcher(store, Config{SupervisorWebhook: supSrv.URL, CallerWebhook: callerSrv.URL})
	ctx := context.Background()
	req := testRequest()

	if err := d.NotifyHuman(ctx, req); err != nil {
		t.Fatalf("NotifyHuman: %v", err)
	}
	if err := d.NotifyCallerResolved(ctx, req); err != nil {
		t.Fatalf("NotifyCallerResolved: %v", err)
	}

	if len(supervisor.payloads) != 1 || supervisor.payloads[0].Type != TypeSupervisorAlert {
		t.Fatalf("unexpected supervisor payloads %+v", supervisor.payloads)
	}
	if supervisor.payloads[0].Request.ID != req.ID {
		t.Errorf("payload request id = %s", supervisor.payloads[0].Request.ID)
	}
	if len(caller.payloads) != 1 || caller.payloads[0].Message != "Yes, $120" {
		t.Fatalf("unexpected caller payloads %+v", caller.payloads)
	}

	list, _ := store.List(ctx, ListFilter{})
	for _, n := range list {
		if n.Channel != ChannelWebhook || !n.Delivered {
			t.Errorf("expected delivered webhook notification, got %+v", n)
		}
	}
}

func TestDispatcherWebhookFailure(t *testing.T) {
	store := setupTestStore(t)
	rec := &webhookRecorder{status: http.StatusInternalServerError}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	d := NewDispatcher(store, Config{CallerWebhook: srv.URL})
	err := d.NotifyCallerTimedOut(context.Background(), testRequest())
	if !errors.Is(err, apperr.ErrDependency) {
		t.Fatalf("expected ErrDependency, got %v", err)
	}

	failed, _ := store.Undelivered(context.Background())
	if len(failed) != 1 {
		t.Fatalf("expected 1 undelivered notification, got %d", len(failed))
	}
	if !strings.Contains(failed[0].Error, "500") {
		t.Errorf("recorded error = %q", failed[0].Error)
	}
}

func TestSlackClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat.postMessage" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer xoxb-test" {
			t.Errorf("unexpected auth header: %s", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"channel":"C123"`) || !strings.Contains(string(body), "keratin") {
			t.Errorf("unexpected body: %s", body)
		}
		w.Write([]byte(`{"ok":true,"ts":"123.456"}`))
	}))
	defer srv.Close()

	c := &SlackClient{Token: "xoxb-test", Channel: "C123", BaseURL: srv.URL, HTTP: srv.Client()}
	ts, err := c.Post(context.Background(), SlackMessage{Title: "Help needed", Question: "Do you do keratin treatments?", Caller: "+15550001", RequestID: "req-1"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if ts != "123.456" {
		t.Errorf("ts = %s", ts)
	}
}

func TestSlackClientReply(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true,"ts":"9.9"}`))
	}))
	defer srv.Close()

	c := &SlackClient{Token: "xoxb-test", BaseURL: srv.URL, HTTP: srv.Client()}
	if err := c.Reply(context.Background(), "C77", "111.222", "Resolved req-1."); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if got["channel"] != "C77" || got["thread_ts"] != "111.222" || got["text"] != "Resolved req-1." {
		t.Errorf("unexpected payload %v", got)
	}
}

func TestSlackClientErrors(t *testing.T) {
	ctx := context.Background()
	c := &SlackClient{Channel: "C1", BaseURL: "https://example.test"}
	if _, err := c.Post(ctx, SlackMessage{}); err == nil {
		t.Error("expected missing token error")
	}
	c = &SlackClient{Token: "x", BaseURL: "https://example.test"}
	if _, err := c.Post(ctx, SlackMessage{}); err == nil {
		t.Error("expected missing channel error")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	store := setupTestStore(t)
	d := NewDispatcher(store, Config{Slack: &SlackClient{Token: "x", Channel: "C1", BaseURL: srv.URL, HTTP: srv.Client()}})
	err := d.NotifyHuman(ctx, testRequest())
	if !errors.Is(err, apperr.ErrDependency) || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("expected slack dependency error, got %v", err)
	}
	list, _ := store.List(ctx, ListFilter{})
	if len(list) != 1 || list[0].Channel != ChannelSlack || list[0].Delivered {
		t.Errorf("unexpected log %+v", list)
	}
}

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) NotifyHuman(context.Context, escalation.HelpRequest) error {
	c.calls++
	return c.err
}

func (c *countingNotifier) NotifyCallerResolved(context.Context, escalation.HelpRequest) error {
	c.calls++
	return c.err
}

func (c *countingNotifier) NotifyCallerTimedOut(context.Context, escalation.HelpRequest) error {
	c.calls++
	return c.err
}

func TestFanout(t *testing.T) {
	failing := &countingNotifier{err: errors.New("boom")}
	ok := &countingNotifier{}
	f := Fanout{failing, nil, ok}

	err := f.NotifyHuman(context.Background(), testRequest())
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected joined error, got %v", err)
	}
	if failing.calls != 1 || ok.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", failing.calls, ok.calls)
	}

	if err := (Fanout{ok}).NotifyCallerTimedOut(context.Background(), testRequest()); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

type claimingNotifier struct {
	countingNotifier
	claimed []string
}

func (c *claimingNotifier) NotifyClaimed(_ context.Context, req escalation.HelpRequest) error {
	c.claimed = append(c.claimed, req.ID)
	return c.err
}

func TestFanoutForwardsClaims(t *testing.T) {
	plain := &countingNotifier{}
	claiming := &claimingNotifier{}
	f := Fanout{plain, nil, claiming}

	if err := f.NotifyClaimed(context.Background(), testRequest()); err != nil {
		t.Fatalf("NotifyClaimed: %v", err)
	}
	if len(claiming.claimed) != 1 || claiming.claimed[0] != "req-1" {
		t.Errorf("claimed = %v", claiming.claimed)
	}
	if plain.calls != 0 {
		t.Errorf("plain notifier called %d times", plain.calls)
	}

	failing := &claimingNotifier{countingNotifier: countingNotifier{err: errors.New("boom")}}
	if err := (Fanout{failing, claiming}).NotifyClaimed(context.Background(), testRequest()); err == nil {
		t.Error("expected error from failing notifier")
	}
	if len(claiming.claimed) != 2 {
		t.Errorf("claimed = %v, want a second claim despite the failure", claiming.claimed)
	}
}

func TestRoutes(t *testing.T) {
	store := setupTestStore(t)
	d := NewDispatcher(store, Config{})
	d.NotifyHuman(context.Background(), testRequest())

	r := chi.NewRouter()
	RegisterRoutes(r, store)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notifications?type=supervisor_alert", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list []Notification
	json.NewDecoder(rec.Body).Decode(&list)
	if len(list) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(list))
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notifications/"+list[0].ID, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notifications/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/notifications/missing/deliver", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("deliver missing status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notifications/undelivered", nil))
	var undelivered []Notification
	json.NewDecoder(rec.Body).Decode(&undelivered)
	if rec.Code != http.StatusOK || len(undelivered) != 0 {
		t.Errorf("undelivered status = %d, list %+v", rec.Code, undelivered)
	}
}
