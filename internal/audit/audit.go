package audit

import (
	"context"
	"time"
)

// ActorType identifies who performed an action.
type ActorType string

const (
	ActorCaller     ActorType = "caller"
	ActorSupervisor ActorType = "supervisor"
	ActorSystem     ActorType = "system"
	ActorAdmin      ActorType = "admin"
)

// Action describes what was done.
type Action string

const (
	ActionEscalationCreated    Action = "escalation_created"
	ActionEscalationClaimed    Action = "escalation_claimed"
	ActionEscalationResolved   Action = "escalation_resolved"
	ActionEscalationTimedOut   Action = "escalation_timed_out"
	ActionKnowledgeLearned     Action = "knowledge_learned"
	ActionKnowledgeCreated     Action = "knowledge_created"
	ActionKnowledgeUpdated     Action = "knowledge_updated"
	ActionKnowledgeDeactivated Action = "knowledge_deactivated"
)

// SubjectType names the kind of record an action applied to.
type SubjectType string

const (
	SubjectHelpRequest    SubjectType = "help_request"
	SubjectKnowledgeEntry SubjectType = "knowledge_entry"
)

// Entry is a single audit trail record.
type Entry struct {
	ID            string      `json:"id"`
	Timestamp     time.Time   `json:"timestamp"`
	ActorType     ActorType   `json:"actor_type"`
	ActorID       string      `json:"actor_id,omitempty"`
	Action        Action      `json:"action"`
	SubjectType   SubjectType `json:"subject_type"`
	SubjectID     string      `json:"subject_id"`
	Summary       string      `json:"summary"`
	PreviousValue string      `json:"previous_value,omitempty"`
	NewValue      string      `json:"new_value,omitempty"`
}

// Logger records audit entries. *Store implements it.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}
