package knowledge

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/handoff/internal/apperr"
	"github.com/ziadkadry99/handoff/internal/audit"
)

// RegisterRoutes mounts the knowledge base admin API. Admin changes are
// recorded to auditLog when it is non-nil.
func RegisterRoutes(r chi.Router, store *Store, auditLog audit.Logger) {
	r.Route("/api/knowledge-base", func(r chi.Router) {
		r.Get("/", handleList(store))
		r.Post("/", handleCreate(store, auditLog))
		r.Get("/{id}", handleGet(store))
		r.Patch("/{id}", handleUpdate(store, auditLog))
		r.Delete("/{id}", handleDeactivate(store, auditLog))
	})
}

func record(ctx context.Context, auditLog audit.Logger, action audit.Action, e *Entry, actor string) {
	if auditLog == nil {
		return
	}
	err := auditLog.Log(ctx, audit.Entry{
		ActorType:   audit.ActorAdmin,
		ActorID:     actor,
		Action:      action,
		SubjectType: audit.SubjectKnowledgeEntry,
		SubjectID:   e.ID,
		Summary:     e.Question,
	})
	if err != nil {
		log.Printf("knowledge: audit %s %s: %v", action, e.ID, err)
	}
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := ListFilter{
			Category: q.Get("category"),
			Source:   Source(q.Get("source")),
		}
		if v := q.Get("active"); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				filter.Active = &b
			}
		}
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Limit = n
			}
		}
		if v := q.Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Offset = n
			}
		}

		entries, err := store.List(r.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		if entries == nil {
			entries = []Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

type createRequest struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
	Confidence float64  `json:"confidence"`
	CreatedBy  string   `json:"created_by"`
}

func handleCreate(store *Store, auditLog audit.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		entry, err := store.Upsert(r.Context(), Entry{
			Question:   req.Question,
			Answer:     req.Answer,
			Category:   req.Category,
			Tags:       req.Tags,
			Source:     SourceAdmin,
			Confidence: req.Confidence,
			CreatedBy:  req.CreatedBy,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		record(r.Context(), auditLog, audit.ActionKnowledgeCreated, entry, req.CreatedBy)
		writeJSON(w, http.StatusCreated, entry)
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func handleUpdate(store *Store, auditLog audit.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p Patch
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		entry, err := store.Update(r.Context(), chi.URLParam(r, "id"), p)
		if err != nil {
			writeError(w, err)
			return
		}
		record(r.Context(), auditLog, audit.ActionKnowledgeUpdated, entry, "")
		writeJSON(w, http.StatusOK, entry)
	}
}

func handleDeactivate(store *Store, auditLog audit.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := store.Deactivate(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		record(r.Context(), auditLog, audit.ActionKnowledgeDeactivated, &Entry{ID: id}, "")
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deactivated"})
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
