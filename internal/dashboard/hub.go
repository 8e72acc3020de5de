package dashboard

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/handoff/internal/escalation"
)

// Event types pushed to supervisors.
const (
	EventSnapshot = "snapshot"
	EventCreated  = "escalation.created"
	EventResolved = "escalation.resolved"
	EventTimedOut = "escalation.timeout"
	EventClaimed  = "escalation.claimed"
	EventError    = "error"
)

const writeWait = 5 * time.Second

// Event is one message on the supervisor feed.
type Event struct {
	Type     string                   `json:"type"`
	Request  *escalation.HelpRequest  `json:"request,omitempty"`
	Requests []escalation.HelpRequest `json:"requests,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(ev)
}

// Hub fans escalation events out to every connected supervisor. It
// implements escalation.Notifier.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

var (
	_ escalation.Notifier      = (*Hub)(nil)
	_ escalation.ClaimNotifier = (*Hub)(nil)
)

func (h *Hub) add(conn *websocket.Conn) *client {
	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

// Count returns the number of connected supervisors.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends ev to every client, dropping those that fail.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.send(ev); err != nil {
			log.Printf("dashboard: dropping supervisor connection: %v", err)
			h.remove(c)
		}
	}
}

func (h *Hub) NotifyHuman(_ context.Context, req escalation.HelpRequest) error {
	h.Broadcast(Event{Type: EventCreated, Request: &req})
	return nil
}

func (h *Hub) NotifyCallerResolved(_ context.Context, req escalation.HelpRequest) error {
	h.Broadcast(Event{Type: EventResolved, Request: &req})
	return nil
}

func (h *Hub) NotifyCallerTimedOut(_ context.Context, req escalation.HelpRequest) error {
	h.Broadcast(Event{Type: EventTimedOut, Request: &req})
	return nil
}

func (h *Hub) NotifyClaimed(_ context.Context, req escalation.HelpRequest) error {
	h.Broadcast(Event{Type: EventClaimed, Request: &req})
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.conn.Close()
	}
}
