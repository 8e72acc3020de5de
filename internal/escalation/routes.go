package escalation

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/handoff/internal/apperr"
)

// RegisterRoutes mounts the search and help request API.
func RegisterRoutes(r chi.Router, c *Coordinator) {
	r.Post("/api/search", handleSearch(c))
	r.Route("/api/help-requests", func(r chi.Router) {
		r.Post("/", handleCreate(c))
		r.Get("/pending", handlePending(c))
		r.Get("/history", handleHistory(c))
		r.Get("/stats", handleStats(c))
		r.Get("/{id}", handleGet(c))
		r.Post("/{id}/claim", handleClaim(c))
		r.Post("/{id}/resolve", handleResolve(c))
	})
}

type searchRequest struct {
	Question string `json:"question"`
}

func handleSearch(c *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		resp, err := c.Search(r.Context(), req.Question)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleCreate(c *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in CreateInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		req, err := c.HandleUnknown(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, req)
	}
}

func handlePending(c *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqs, err := c.ListPending(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if reqs == nil {
			reqs = []HelpRequest{}
		}
		writeJSON(w, http.StatusOK, reqs)
	}
}

func handleHistory(c *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := HistoryFilter{
			Status:   Status(q.Get("status")),
			CallerID: q.Get("caller_id"),
		}
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				f.Limit = n
			}
		}
		if v := q.Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				f.Offset = n
			}
		}
		page, err := c.ListHistory(r.Context(), f)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func handleStats(c *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := c.Stats(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func handleGet(c *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := c.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}

type claimRequest struct {
	ResolverID string `json:"resolver_id"`
}

func handleClaim(c *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body claimRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		req, err := c.Claim(r.Context(), chi.URLParam(r, "id"), body.ResolverID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}

type resolveRequest struct {
	HumanResponse string `json:"human_response"`
	ResolverID    string `json:"resolver_id"`
}

type resolveResponse struct {
	*ResolveResult
	LearnError string `json:"learn_error,omitempty"`
}

func handleResolve(c *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body resolveRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		res, err := c.Resolve(r.Context(), chi.URLParam(r, "id"), body.HumanResponse, body.ResolverID)
		if err != nil {
			writeError(w, err)
			return
		}
		out := resolveResponse{ResolveResult: res}
		if res.LearnErr != nil {
			out.LearnError = res.LearnErr.Error()
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
