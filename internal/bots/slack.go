package bots

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// SlackHandler handles incoming Slack webhook events.
type SlackHandler struct {
	handler       MessageHandler
	signingSecret string
	replier       Replier
	now           func() time.Time
}

// NewSlackHandler creates a new Slack event handler. Replies are posted
// through replier when it is non-nil and echoed in the response body.
func NewSlackHandler(handler MessageHandler, signingSecret string, replier Replier) *SlackHandler {
	return &SlackHandler{
		handler:       handler,
		signingSecret: signingSecret,
		replier:       replier,
		now:           time.Now,
	}
}

// slackEvent represents the top-level Slack event payload.
type slackEvent struct {
	Type      string          `json:"type"`
	Token     string          `json:"token"`
	Challenge string          `json:"challenge"`
	Event     slackInnerEvent `json:"event"`
}

// slackInnerEvent represents the inner event in a Slack event_callback.
type slackInnerEvent struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype"`
	User     string `json:"user"`
	Text     string `json:"text"`
	Channel  string `json:"channel"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts"`
	BotID    string `json:"bot_id"`
}

// HandleEvent handles incoming Slack events (HTTP POST).
func (h *SlackHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if h.signingSecret != "" {
		if !h.verifySignature(r, body) {
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var event slackEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "url_verification":
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"challenge": event.Challenge})
		return

	case "event_callback":
		// Skip bot messages to avoid loops.
		if event.Event.BotID != "" || event.Event.Subtype == "bot_message" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if event.Event.Type != "message" && event.Event.Type != "app_mention" {
			w.WriteHeader(http.StatusOK)
			return
		}

		msg := IncomingMessage{
			Platform:  PlatformSlack,
			ChannelID: event.Event.Channel,
			UserID:    event.Event.User,
			Text:      event.Event.Text,
			ThreadID:  event.Event.ThreadTS,
			Timestamp: event.Event.TS,
		}
		// Reply in a thread under the supervisor's message.
		if msg.ThreadID == "" {
			msg.ThreadID = event.Event.TS
		}

		resp, err := h.handler.HandleMessage(r.Context(), msg)
		if err != nil {
			http.Error(w, "processing error", http.StatusInternalServerError)
			return
		}

		out := formatSlackMessage(resp)
		if h.replier != nil {
			if err := h.replier.Reply(r.Context(), out.Channel, out.ThreadTS, out.Text); err != nil {
				log.Printf("bots: slack reply to %s: %v", out.Channel, err)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
		return

	default:
		w.WriteHeader(http.StatusOK)
	}
}

// verifySignature verifies the Slack request signature using HMAC-SHA256
// and rejects requests older than five minutes.
func (h *SlackHandler) verifySignature(r *http.Request, body []byte) bool {
	timestamp := r.Header.Get("X-Slack-Request-Timestamp")
	signature := r.Header.Get("X-Slack-Signature")

	if timestamp == "" || signature == "" {
		return false
	}
	if !verifyTimestamp(timestamp, h.now()) {
		return false
	}

	expected := slackSignature(h.signingSecret, timestamp, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func slackSignature(secret, timestamp string, body []byte) string {
	baseString := fmt.Sprintf("v0:%s:%s", timestamp, string(body))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(baseString))
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

// verifyTimestamp checks that the request timestamp is within 5 minutes of now.
func verifyTimestamp(timestamp string, now time.Time) bool {
	var ts int64
	if _, err := fmt.Sscanf(timestamp, "%d", &ts); err != nil {
		return false
	}
	diff := now.Unix() - ts
	if diff < 0 {
		diff = -diff
	}
	return diff <= 300
}

// slackResponse represents a simple Slack response message.
type slackResponse struct {
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// formatSlackMessage creates a Slack-formatted response payload.
func formatSlackMessage(msg *OutgoingMessage) *slackResponse {
	resp := &slackResponse{
		Channel: msg.ChannelID,
		Text:    msg.Text,
	}
	if msg.ThreadID != "" {
		resp.ThreadTS = msg.ThreadID
	}

	// Slack mrkdwn has no list syntax.
	if strings.Contains(resp.Text, "\n") {
		lines := strings.Split(resp.Text, "\n")
		for i, line := range lines {
			if strings.HasPrefix(line, "- ") {
				lines[i] = "• " + line[2:]
			}
		}
		resp.Text = strings.Join(lines, "\n")
	}

	return resp
}
