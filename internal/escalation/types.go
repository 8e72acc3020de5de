package escalation

import (
	"context"
	"time"
)

// Status is the lifecycle stage of a help request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusTimedOut   Status = "timeout"
)

// Open reports whether a request in this status can still be resolved.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusInProgress
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved, StatusTimedOut:
		return true
	}
	return false
}

// DefaultWindow is how long a request may stay open before it times out.
const DefaultWindow = 30 * time.Minute

// DefaultSweepInterval is how often the coordinator sweeps for timeouts.
const DefaultSweepInterval = time.Minute

// Metadata records what the agent tried before escalating.
type Metadata struct {
	AttemptedSearch bool     `json:"attempted_search"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	Context         string   `json:"context,omitempty"`
}

// HelpRequest is a question escalated to a human supervisor.
type HelpRequest struct {
	ID            string     `json:"id"`
	Question      string     `json:"question"`
	CallerID      string     `json:"caller_id"`
	CallerName    string     `json:"caller_name,omitempty"`
	SessionID     string     `json:"session_id"`
	Status        Status     `json:"status"`
	HumanResponse string     `json:"human_response,omitempty"`
	ResolverID    string     `json:"resolver_id,omitempty"`
	ClaimedBy     string     `json:"claimed_by,omitempty"`
	Metadata      Metadata   `json:"metadata"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	TimeoutAt     time.Time  `json:"timeout_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// CreateInput describes a new escalation.
type CreateInput struct {
	Question        string   `json:"question"`
	CallerID        string   `json:"caller_id"`
	CallerName      string   `json:"caller_name,omitempty"`
	SessionID       string   `json:"session_id"`
	Context         string   `json:"context,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	AttemptedSearch bool     `json:"attempted_search"`
}

// HistoryFilter controls ListHistory. A zero Limit selects 50.
type HistoryFilter struct {
	Status   Status
	CallerID string
	Limit    int
	Offset   int
}

const defaultHistoryLimit = 50

// HistoryPage is one page of history plus the total matching count.
type HistoryPage struct {
	Requests []HelpRequest `json:"requests"`
	Total    int           `json:"total"`
	Limit    int           `json:"limit"`
	Offset   int           `json:"offset"`
}

// Stats counts requests per status.
type Stats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
	TimedOut   int `json:"timeout"`
}

// Notifier delivers escalation events to people. Implementations may block
// on the network; the coordinator logs their errors and carries on.
type Notifier interface {
	NotifyHuman(ctx context.Context, req HelpRequest) error
	NotifyCallerResolved(ctx context.Context, req HelpRequest) error
	NotifyCallerTimedOut(ctx context.Context, req HelpRequest) error
}

// ClaimNotifier is implemented by notifiers that also want to hear when a
// supervisor picks up a request.
type ClaimNotifier interface {
	NotifyClaimed(ctx context.Context, req HelpRequest) error
}

// SessionLinker records that a call session produced a help request.
type SessionLinker interface {
	LinkHelpRequest(ctx context.Context, sessionID, requestID string) error
}
