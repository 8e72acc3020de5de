package sessions

import "time"

// Status is the state of a call session.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusCompleted || s == StatusFailed
}

// Session is one phone call handled by the agent.
type Session struct {
	SessionID       string     `json:"session_id"`
	RoomName        string     `json:"room_name"`
	CallerID        string     `json:"caller_id"`
	CallerName      string     `json:"caller_name,omitempty"`
	Status          Status     `json:"status"`
	Transcript      string     `json:"transcript,omitempty"`
	DurationSeconds *int       `json:"duration_seconds,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	HelpRequestIDs  []string   `json:"help_request_ids"`
}

// StartInput describes a call that just connected.
type StartInput struct {
	SessionID  string `json:"session_id"`
	RoomName   string `json:"room_name"`
	CallerID   string `json:"caller_id"`
	CallerName string `json:"caller_name,omitempty"`
}

// ListFilter controls List. A zero Limit selects 50.
type ListFilter struct {
	Status   Status
	CallerID string
	Limit    int
	Offset   int
}

const defaultListLimit = 50

// Page is one page of sessions plus the total matching count.
type Page struct {
	Calls  []Session `json:"calls"`
	Total  int       `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

// Stats summarises call volume and how often calls needed a human.
type Stats struct {
	TotalCalls        int     `json:"total_calls"`
	ActiveCalls       int     `json:"active_calls"`
	CompletedCalls    int     `json:"completed_calls"`
	FailedCalls       int     `json:"failed_calls"`
	AverageDuration   float64 `json:"average_duration"`
	TotalHelpRequests int     `json:"total_help_requests"`
	// HelpRequestRate is help requests per hundred calls, to two decimals.
	HelpRequestRate float64 `json:"help_request_rate"`
}
