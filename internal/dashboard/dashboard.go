package dashboard

import (
	"context"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/handoff/internal/escalation"
)

// Service is the escalation surface the supervisor dashboard drives.
type Service interface {
	ListPending(ctx context.Context) ([]escalation.HelpRequest, error)
	Stats(ctx context.Context) (*escalation.Stats, error)
	Claim(ctx context.Context, id, resolverID string) (*escalation.HelpRequest, error)
	Resolve(ctx context.Context, id, response, resolverID string) (*escalation.ResolveResult, error)
}

// Dashboard serves the supervisor page, its stats endpoint and the live
// websocket feed.
type Dashboard struct {
	hub *Hub
	svc Service
}

// New creates a Dashboard. The hub must be the same one registered as a
// notifier with the coordinator so that supervisors see new escalations.
func New(hub *Hub, svc Service) *Dashboard {
	return &Dashboard{hub: hub, svc: svc}
}

// RegisterRoutes mounts all dashboard routes onto the given router.
func (d *Dashboard) RegisterRoutes(r chi.Router) {
	r.Get("/", d.ServeIndex)
	r.Get("/api/dashboard/stats", d.handleStats)
	r.Get("/ws/supervisor", d.handleWebSocket)
}
