package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/ziadkadry99/handoff/internal/apperr"
	"github.com/ziadkadry99/handoff/internal/escalation"
)

type statsResponse struct {
	escalation.Stats
	Supervisors int `json:"supervisors_online"`
}

func (d *Dashboard) handleStats(w http.ResponseWriter, r *http.Request) {
	s, err := d.svc.Stats(r.Context())
	if err != nil {
		writeJSON(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Stats: *s, Supervisors: d.hub.Count()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
