package bots

import "context"

// Platform identifies the messaging platform.
type Platform string

const (
	PlatformSlack Platform = "slack"
	PlatformTeams Platform = "teams"
)

// IncomingMessage represents a message received from any platform.
type IncomingMessage struct {
	Platform  Platform
	ChannelID string
	UserID    string
	UserName  string
	Text      string
	ThreadID  string // for threaded replies
	Timestamp string
}

// OutgoingMessage represents a response to send back.
type OutgoingMessage struct {
	ChannelID string
	Text      string
	ThreadID  string
}

// MessageHandler processes incoming messages and produces responses.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg IncomingMessage) (*OutgoingMessage, error)
}

// Replier posts a reply into a chat channel. Slack ignores event response
// bodies, so replies there go through the Web API.
type Replier interface {
	Reply(ctx context.Context, channel, threadTS, text string) error
}
