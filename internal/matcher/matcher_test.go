package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/ziadkadry99/handoff/internal/apperr"
	"github.com/ziadkadry99/handoff/internal/db"
	"github.com/ziadkadry99/handoff/internal/knowledge"
)

func setupStore(t *testing.T) *knowledge.Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return knowledge.NewStore(database, nil)
}

func TestKeywordFallbackForHours(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	hours, err := store.Upsert(ctx, knowledge.Entry{Question: "What are your hours?", Answer: "9 to 7", Category: "hours"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	m := New(store, Config{})
	res, err := m.Lookup(ctx, "when are you open")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !res.Found || res.Entry.ID != hours.ID {
		t.Fatalf("expected hours entry, got %+v", res)
	}
	if res.Stage != StageCategory || res.Category != "hours" {
		t.Errorf("stage = %s, category = %s", res.Stage, res.Category)
	}

	got, _ := store.Get(ctx, hours.ID)
	if got.UsageCount != 1 {
		t.Errorf("usage count = %d, want 1", got.UsageCount)
	}
}

func TestTextStageHit(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	store.Seed(ctx, knowledge.DefaultSeed())

	res, err := New(store, Config{}).Lookup(ctx, "How much does a haircut cost?")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !res.Found || res.Stage != StageText || res.Category != "pricing" {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Score <= DefaultThreshold {
		t.Errorf("score %v not above threshold", res.Score)
	}
	if res.Entry.UsageCount != 1 {
		t.Errorf("returned entry usage = %d, want 1", res.Entry.UsageCount)
	}
}

func TestNoMatchCarriesRejectedScore(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	store.Upsert(ctx, knowledge.Entry{Question: "Do you sell gift cards online?", Answer: "Yes", Category: "general"})

	res, err := New(store, Config{Threshold: 0.9}).Lookup(ctx, "Do you sell gift vouchers?")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res.Found {
		t.Fatalf("expected no match, got %+v", res)
	}
	if res.Score <= 0 || res.Score > 0.9 {
		t.Errorf("rejected score = %v", res.Score)
	}
}

func TestKeywordHitWithoutEntriesContinues(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	loc, _ := store.Upsert(ctx, knowledge.Entry{Question: "Where are you located?", Answer: "Downtown", Category: "location"})

	// "open" selects hours first, which has no entries; "where" then selects location.
	res, err := New(store, Config{}).Lookup(ctx, "where is the open parking lot")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !res.Found || res.Entry.ID != loc.ID || res.Category != "location" {
		t.Errorf("expected location fallback, got %+v", res)
	}
}

func TestCustomCategoriesAndNormalization(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	e, _ := store.Upsert(ctx, knowledge.Entry{Question: "Is there parking?", Answer: "Yes", Category: "parking"})

	m := New(store, Config{Categories: []Category{{Name: "parking", Keywords: []string{"Garage", "park"}}}})
	res, err := m.Lookup(ctx, "Where's the GARAGE?")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !res.Found || res.Entry.ID != e.ID {
		t.Errorf("expected parking entry, got %+v", res)
	}
}

func TestBlankQuestion(t *testing.T) {
	_, err := New(setupStore(t), Config{}).Lookup(context.Background(), "   ")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

type stubSource struct {
	textErr     error
	categoryErr error
	byCategory  map[string]*knowledge.Entry
	usage       map[string]int
}

func (s *stubSource) FindBestTextMatch(context.Context, string) (*knowledge.Entry, float64, error) {
	return nil, 0, s.textErr
}

func (s *stubSource) FindByCategory(_ context.Context, c string) (*knowledge.Entry, error) {
	if s.categoryErr != nil {
		return nil, s.categoryErr
	}
	return s.byCategory[c], nil
}

func (s *stubSource) RecordUsage(_ context.Context, id string) error {
	s.usage[id]++
	return nil
}

func TestTextStageErrorFallsThrough(t *testing.T) {
	src := &stubSource{
		textErr:    apperr.Dependency("text index", errors.New("offline")),
		byCategory: map[string]*knowledge.Entry{"pricing": {ID: "p1", Category: "pricing", Confidence: 0.8}},
		usage:      map[string]int{},
	}
	res, err := New(src, Config{}).Lookup(context.Background(), "what's the price?")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !res.Found || res.Entry.ID != "p1" {
		t.Errorf("expected category fallback, got %+v", res)
	}
	if src.usage["p1"] != 1 {
		t.Errorf("usage = %d, want 1", src.usage["p1"])
	}
}

func TestCategoryErrorSurfaces(t *testing.T) {
	src := &stubSource{categoryErr: errors.New("disk full"), usage: map[string]int{}}
	_, err := New(src, Config{}).Lookup(context.Background(), "what's the price?")
	if err == nil {
		t.Error("expected category lookup error")
	}
}

func TestNoMatchDoesNotRecordUsage(t *testing.T) {
	src := &stubSource{byCategory: map[string]*knowledge.Entry{}, usage: map[string]int{}}
	res, err := New(src, Config{}).Lookup(context.Background(), "do you sell gift cards")
	if err != nil || res.Found {
		t.Fatalf("expected clean miss, got %+v %v", res, err)
	}
	if len(src.usage) != 0 {
		t.Errorf("usage recorded on miss: %v", src.usage)
	}
}
