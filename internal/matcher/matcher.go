// Package matcher answers caller questions from the knowledge store in two
// stages: free-text relevance first, then an ordered keyword-category fallback.
package matcher

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ziadkadry99/handoff/internal/apperr"
	"github.com/ziadkadry99/handoff/internal/knowledge"
	"github.com/ziadkadry99/handoff/internal/lexicon"
)

// DefaultThreshold is the text score a match must exceed to be accepted.
const DefaultThreshold = 0.5

// Stage names the lookup stage that produced a match.
type Stage string

const (
	StageText     Stage = "text"
	StageCategory Stage = "category"
)

// Category maps a knowledge category to the keywords that select it.
type Category struct {
	Name     string   `json:"name" koanf:"name" yaml:"name"`
	Keywords []string `json:"keywords" koanf:"keywords" yaml:"keywords"`
}

// DefaultCategories returns the fallback categories in evaluation order.
func DefaultCategories() []Category {
	return []Category{
		{Name: "hours", Keywords: []string{"hour", "open", "close", "timing", "schedule"}},
		{Name: "pricing", Keywords: []string{"price", "cost", "charge", "fee", "much"}},
		{Name: "services", Keywords: []string{"service", "offer", "haircut", "color", "treatment"}},
		{Name: "booking", Keywords: []string{"book", "appointment", "reserve", "schedule"}},
		{Name: "location", Keywords: []string{"location", "address", "where", "find"}},
	}
}

// Config tunes a Matcher.
type Config struct {
	Threshold  float64
	Categories []Category
}

// Source is the part of the knowledge store the matcher reads.
type Source interface {
	FindBestTextMatch(ctx context.Context, question string) (*knowledge.Entry, float64, error)
	FindByCategory(ctx context.Context, category string) (*knowledge.Entry, error)
	RecordUsage(ctx context.Context, id string) error
}

// Result is the outcome of a lookup. When Found is false, Score carries the
// best rejected text score (zero if there was no candidate).
type Result struct {
	Found    bool
	Entry    *knowledge.Entry
	Score    float64
	Stage    Stage
	Category string
}

// Matcher performs two-stage lookups. It is safe for concurrent use.
type Matcher struct {
	src        Source
	threshold  float64
	categories []Category
}

// New creates a Matcher. Zero config values select the defaults.
func New(src Source, cfg Config) *Matcher {
	m := &Matcher{src: src, threshold: cfg.Threshold, categories: cfg.Categories}
	if m.threshold <= 0 {
		m.threshold = DefaultThreshold
	}
	if len(m.categories) == 0 {
		m.categories = DefaultCategories()
	}
	return m
}

// Threshold returns the acceptance threshold in use.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Lookup finds the best answer for question.
func (m *Matcher) Lookup(ctx context.Context, question string) (Result, error) {
	if strings.TrimSpace(question) == "" {
		return Result{}, apperr.Validation("question is required")
	}

	var rejected float64
	entry, score, err := m.src.FindBestTextMatch(ctx, question)
	switch {
	case err != nil:
		log.Printf("matcher: text stage unavailable, using category fallback: %v", err)
	case entry != nil && score > m.threshold:
		m.recordUsage(ctx, entry)
		return Result{Found: true, Entry: entry, Score: score, Stage: StageText, Category: entry.Category}, nil
	case entry != nil:
		rejected = score
	}

	normalized := lexicon.Normalize(question)
	for _, c := range m.categories {
		if !lexicon.ContainsAny(normalized, c.Keywords) {
			continue
		}
		e, err := m.src.FindByCategory(ctx, c.Name)
		if err != nil {
			return Result{}, fmt.Errorf("category %s: %w", c.Name, err)
		}
		if e == nil {
			continue
		}
		m.recordUsage(ctx, e)
		return Result{Found: true, Entry: e, Score: e.Confidence, Stage: StageCategory, Category: c.Name}, nil
	}

	return Result{Found: false, Score: rejected}, nil
}

func (m *Matcher) recordUsage(ctx context.Context, e *knowledge.Entry) {
	if err := m.src.RecordUsage(ctx, e.ID); err != nil {
		log.Printf("matcher: recording usage of %s: %v", e.ID, err)
		return
	}
	e.UsageCount++
}
