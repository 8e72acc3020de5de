package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// command is an action sent by a supervisor over the feed.
type command struct {
	Type       string `json:"type"` // "resolve" or "claim"
	RequestID  string `json:"request_id"`
	Response   string `json:"response"`
	ResolverID string `json:"resolver_id"`
}

func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("dashboard: websocket upgrade: %v", err)
		return
	}
	c := d.hub.add(conn)
	defer d.hub.remove(c)

	// The feed outlives the router's request timeout.
	ctx := context.WithoutCancel(r.Context())

	pending, err := d.svc.ListPending(ctx)
	if err != nil {
		c.send(Event{Type: EventError, Error: "loading pending requests: " + err.Error()})
	} else if err := c.send(Event{Type: EventSnapshot, Requests: pending}); err != nil {
		return
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("dashboard: websocket read: %v", err)
			}
			return
		}

		var cmd command
		if err := json.Unmarshal(msg, &cmd); err != nil {
			c.send(Event{Type: EventError, Error: "invalid message format"})
			continue
		}

		switch cmd.Type {
		case "resolve":
			// The coordinator broadcasts the resolution through the hub.
			if _, err := d.svc.Resolve(ctx, cmd.RequestID, cmd.Response, cmd.ResolverID); err != nil {
				c.send(Event{Type: EventError, Error: err.Error()})
			}
		case "claim":
			if _, err := d.svc.Claim(ctx, cmd.RequestID, cmd.ResolverID); err != nil {
				c.send(Event{Type: EventError, Error: err.Error()})
			}
		default:
			c.send(Event{Type: EventError, Error: "unknown message type: " + cmd.Type})
		}
	}
}
