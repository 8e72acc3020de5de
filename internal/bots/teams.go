package bots

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// TeamsHandler handles messages from a Teams outgoing webhook.
type TeamsHandler struct {
	handler MessageHandler
	secret  []byte
}

// NewTeamsHandler creates a Teams handler. secret is the base64 security
// token Teams shows when the outgoing webhook is created.
func NewTeamsHandler(handler MessageHandler, secret string) (*TeamsHandler, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, err
	}
	return &TeamsHandler{handler: handler, secret: key}, nil
}

type teamsActivity struct {
	Type         string            `json:"type"`
	ID           string            `json:"id"`
	Timestamp    string            `json:"timestamp"`
	Text         string            `json:"text"`
	From         teamsAccount      `json:"from"`
	Conversation teamsConversation `json:"conversation"`
	ReplyToID    string            `json:"replyToId"`
}

type teamsAccount struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type teamsConversation struct {
	ID string `json:"id"`
}

// HandleActivity answers one activity synchronously; Teams shows the
// response body as the bot's reply.
func (h *TeamsHandler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if !h.verify(r.Header.Get("Authorization"), body) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var activity teamsActivity
	if err := json.Unmarshal(body, &activity); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if activity.Type != "message" {
		w.WriteHeader(http.StatusOK)
		return
	}

	resp, err := h.handler.HandleMessage(r.Context(), IncomingMessage{
		Platform:  PlatformTeams,
		ChannelID: activity.Conversation.ID,
		UserID:    activity.From.ID,
		UserName:  activity.From.Name,
		Text:      activity.Text,
		ThreadID:  activity.ReplyToID,
		Timestamp: activity.Timestamp,
	})
	if err != nil {
		http.Error(w, "processing error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"type":      "message",
		"text":      resp.Text,
		"replyToId": activity.ID,
	})
}

// verify checks the "HMAC <base64 sha256>" Authorization header Teams
// computes over the raw body.
func (h *TeamsHandler) verify(header string, body []byte) bool {
	sig, ok := strings.CutPrefix(header, "HMAC ")
	if !ok {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(teamsSignature(h.secret, body)))
}

func teamsSignature(key, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
