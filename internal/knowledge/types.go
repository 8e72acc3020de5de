package knowledge

import (
	"context"
	"time"
)

// Source records how an entry entered the store.
type Source string

const (
	SourceSeed          Source = "seed"
	SourceHumanResolved Source = "human-resolved"
	SourceAdmin         Source = "admin"
)

const (
	// DefaultCategory is applied when an entry is stored without one.
	DefaultCategory = "general"
	// CategorySupervisorLearned holds answers written back by the learning loop.
	CategorySupervisorLearned = "supervisor-learned"
	// DefaultConfidence is applied when an entry is stored without one.
	DefaultConfidence = 0.8
)

// Entry is a curated question/answer pair.
type Entry struct {
	ID         string     `json:"id"`
	Question   string     `json:"question"`
	Answer     string     `json:"answer"`
	Category   string     `json:"category"`
	Tags       []string   `json:"tags"`
	Source     Source     `json:"source"`
	Confidence float64    `json:"confidence"`
	UsageCount int        `json:"usage_count"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	IsActive   bool       `json:"is_active"`
	CreatedBy  string     `json:"created_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ListFilter controls which entries List returns.
type ListFilter struct {
	Category string
	Source   Source
	Active   *bool
	Limit    int
	Offset   int
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Question   *string   `json:"question,omitempty"`
	Answer     *string   `json:"answer,omitempty"`
	Category   *string   `json:"category,omitempty"`
	Tags       *[]string `json:"tags,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	IsActive   *bool     `json:"is_active,omitempty"`
}

// Hit is the best candidate an Index found for a question.
type Hit struct {
	ID    string
	Score float64 // normalized to [0,1]
}

// Index ranks active entries by textual relevance to a question.
// Implementations must only return ids of active entries.
type Index interface {
	Put(ctx context.Context, e Entry) error
	Remove(ctx context.Context, id string) error
	Best(ctx context.Context, question string) (*Hit, error)
}
