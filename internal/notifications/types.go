package notifications

import "time"

// Type identifies the escalation event a notification reports.
type Type string

const (
	TypeSupervisorAlert Type = "supervisor_alert"
	TypeCallerAnswer    Type = "caller_answer"
	TypeCallerTimeout   Type = "caller_timeout"
)

// Channel is the transport a notification was delivered over.
type Channel string

const (
	ChannelLog     Channel = "log"
	ChannelWebhook Channel = "webhook"
	ChannelSlack   Channel = "slack"
)

// TimeoutMessage is what a caller hears when nobody answered in time.
const TimeoutMessage = "We're still working on your question. We'll get back to you soon."

// Notification is a single delivery attempt.
type Notification struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Channel   Channel   `json:"channel"`
	Recipient string    `json:"recipient"`
	RequestID string    `json:"request_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Delivered bool      `json:"delivered"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListFilter controls which notifications are returned by List.
type ListFilter struct {
	Type      Type
	RequestID string
	Delivered *bool
	Since     time.Time
	Limit     int
	Offset    int
}
