package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SlackClient posts messages through the Slack Web API.
type SlackClient struct {
	Token   string
	Channel string
	BaseURL string
	HTTP    *http.Client
}

// SlackMessage is the content of one escalation message.
type SlackMessage struct {
	Title     string
	Question  string
	Caller    string
	RequestID string
	Answer    string
}

// Post sends msg to the client's channel and returns the message timestamp.
func (c *SlackClient) Post(ctx context.Context, msg SlackMessage) (string, error) {
	if c.Channel == "" {
		return "", fmt.Errorf("missing slack channel")
	}
	return c.postMessage(ctx, map[string]any{
		"channel": c.Channel,
		"text":    msg.Title,
		"blocks":  buildBlocks(msg),
	})
}

// Reply posts plain text to channel, threaded under threadTS when set.
func (c *SlackClient) Reply(ctx context.Context, channel, threadTS, text string) error {
	payload := map[string]any{
		"channel": channel,
		"text":    text,
	}
	if threadTS != "" {
		payload["thread_ts"] = threadTS
	}
	_, err := c.postMessage(ctx, payload)
	return err
}

func (c *SlackClient) postMessage(ctx context.Context, payload map[string]any) (string, error) {
	if c.HTTP == nil {
		c.HTTP = &http.Client{Timeout: 10 * time.Second}
	}
	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = "https://slack.com/api"
	}
	if c.Token == "" {
		return "", fmt.Errorf("missing slack token")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	var resp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
		TS    string `json:"ts,omitempty"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("decoding slack response: %w", err)
	}
	if !resp.OK {
		if resp.Error == "" {
			resp.Error = "slack api error"
		}
		return "", fmt.Errorf("%s", resp.Error)
	}
	return resp.TS, nil
}

// buildBlocks renders msg as Block Kit sections.
func buildBlocks(msg SlackMessage) []map[string]any {
	fields := []map[string]any{
		{"type": "mrkdwn", "text": "*Caller*\n" + msg.Caller},
		{"type": "mrkdwn", "text": "*Request*\n" + msg.RequestID},
	}
	blocks := []map[string]any{
		{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": "*" + msg.Title + "*"},
		},
		{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": "> " + msg.Question},
		},
		{
			"type":   "section",
			"fields": fields,
		},
	}
	if msg.Answer != "" {
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": "*Answer*\n" + msg.Answer},
		})
	}
	return blocks
}
