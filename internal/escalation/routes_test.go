package escalation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/handoff/internal/knowledge"
)

func setupRouter(t *testing.T) (chi.Router, *fixture) {
	t.Helper()
	f := setupCoordinator(t)
	r := chi.NewRouter()
	RegisterRoutes(r, f.coord)
	return r, f
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHTTPSearch(t *testing.T) {
	r, _ := setupRouter(t)

	rec := do(r, http.MethodPost, "/api/search", `{"question":"when are you open"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp SearchResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if !resp.Found || resp.Category != "hours" {
		t.Errorf("unexpected response %+v", resp)
	}

	rec = do(r, http.MethodPost, "/api/search", `{"question":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank question status = %d, want 400", rec.Code)
	}
}

func TestHTTPEscalateAndResolve(t *testing.T) {
	r, _ := setupRouter(t)

	rec := do(r, http.MethodPost, "/api/help-requests", `{"question":"Do you do keratin treatments?","caller_id":"+15550001","session_id":"s1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var req HelpRequest
	json.NewDecoder(rec.Body).Decode(&req)

	rec = do(r, http.MethodPost, "/api/help-requests", `{"question":"again","caller_id":"+15550001","session_id":"s1"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate session status = %d, want 409", rec.Code)
	}

	rec = do(r, http.MethodGet, "/api/help-requests/pending", "")
	var pending []HelpRequest
	json.NewDecoder(rec.Body).Decode(&pending)
	if len(pending) != 1 || pending[0].ID != req.ID {
		t.Errorf("pending = %+v", pending)
	}

	rec = do(r, http.MethodPost, "/api/help-requests/"+req.ID+"/claim", `{"resolver_id":"sup1"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("claim status = %d", rec.Code)
	}

	rec = do(r, http.MethodPost, "/api/help-requests/"+req.ID+"/resolve", `{"human_response":"Yes, $120","resolver_id":"sup1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Request    HelpRequest      `json:"request"`
		Learned    *knowledge.Entry `json:"learned"`
		LearnError string           `json:"learn_error"`
	}
	json.NewDecoder(rec.Body).Decode(&out)
	if out.Request.Status != StatusResolved || out.Learned == nil || out.LearnError != "" {
		t.Errorf("unexpected resolve response %+v", out)
	}

	rec = do(r, http.MethodPost, "/api/help-requests/"+req.ID+"/resolve", `{"human_response":"No","resolver_id":"sup2"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("second resolve status = %d, want 409", rec.Code)
	}

	rec = do(r, http.MethodGet, "/api/help-requests/history?status=resolved", "")
	var page HistoryPage
	json.NewDecoder(rec.Body).Decode(&page)
	if page.Total != 1 || len(page.Requests) != 1 {
		t.Errorf("history = %+v", page)
	}

	rec = do(r, http.MethodGet, "/api/help-requests/stats", "")
	var stats Stats
	json.NewDecoder(rec.Body).Decode(&stats)
	if stats.Resolved != 1 || stats.Total != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestHTTPHelpRequestErrors(t *testing.T) {
	r, _ := setupRouter(t)

	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"get missing", http.MethodGet, "/api/help-requests/nope", "", http.StatusNotFound},
		{"resolve missing", http.MethodPost, "/api/help-requests/nope/resolve", `{"human_response":"x","resolver_id":"s"}`, http.StatusNotFound},
		{"create invalid", http.MethodPost, "/api/help-requests", `{"question":"q"}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/help-requests", `nope`, http.StatusBadRequest},
		{"bad status filter", http.MethodGet, "/api/help-requests/history?status=closed", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(r, tt.method, tt.path, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}
