package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/ziadkadry99/handoff/internal/progress"
)

// DefaultSeed returns the starter entries for a salon front desk.
func DefaultSeed() []Entry {
	return []Entry{
		{
			Question: "What are your business hours?",
			Answer:   "We are open Monday to Saturday from 9 AM to 7 PM, and Sunday from 10 AM to 5 PM.",
			Category: "hours",
			Tags:     []string{"hours", "open", "schedule"},
			Source:   SourceSeed,
		},
		{
			Question: "What services do you offer?",
			Answer:   "We offer haircuts, hair coloring, styling, manicures, pedicures, facials, and waxing services.",
			Category: "services",
			Tags:     []string{"services", "haircut", "coloring"},
			Source:   SourceSeed,
		},
		{
			Question: "How much does a haircut cost?",
			Answer:   "Our haircut prices start at $30 for a basic cut and go up to $60 for premium styling.",
			Category: "pricing",
			Tags:     []string{"price", "haircut", "cost"},
			Source:   SourceSeed,
		},
		{
			Question: "Where are you located?",
			Answer:   "We are located at 123 Beauty Lane, Suite 100, Downtown District.",
			Category: "location",
			Tags:     []string{"location", "address", "where"},
			Source:   SourceSeed,
		},
		{
			Question: "How do I book an appointment?",
			Answer:   "You can book an appointment by calling us at (555) 123-4567 or through our website.",
			Category: "booking",
			Tags:     []string{"booking", "appointment", "reserve"},
			Source:   SourceSeed,
		},
	}
}

// Seed inserts entries only when the store is empty and returns how many
// were written.
func (s *Store) Seed(ctx context.Context, entries []Entry) (int, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	for i, e := range entries {
		if e.Source == "" {
			e.Source = SourceSeed
		}
		if _, err := s.Upsert(ctx, e); err != nil {
			return i, fmt.Errorf("seeding entry %d: %w", i, err)
		}
	}
	log.Printf("knowledge: seeded %d entries", len(entries))
	return len(entries), nil
}

// Import upserts entries regardless of what the store already holds,
// reporting progress as it goes.
func (s *Store) Import(ctx context.Context, entries []Entry, reporter progress.Reporter) (int, error) {
	reporter.Start(len(entries))
	defer reporter.Finish()
	for i, e := range entries {
		if _, err := s.Upsert(ctx, e); err != nil {
			return i, fmt.Errorf("importing %q: %w", e.Question, err)
		}
		reporter.Update(i+1, e.Question)
	}
	return len(entries), nil
}

type seedFile struct {
	Entries []seedEntry `yaml:"entries"`
}

type seedEntry struct {
	ID         string   `yaml:"id"`
	Question   string   `yaml:"question"`
	Answer     string   `yaml:"answer"`
	Category   string   `yaml:"category"`
	Tags       []string `yaml:"tags"`
	Source     string   `yaml:"source"`
	Confidence float64  `yaml:"confidence"`
	CreatedBy  string   `yaml:"created_by"`
}

// LoadSeedFiles reads every YAML file in fsys matching one of the
// doublestar patterns (e.g. "seed/**/*.yml") and returns their entries in
// path order. Entries without a source are marked as seed data.
func LoadSeedFiles(fsys fs.FS, patterns []string) ([]Entry, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid seed pattern %q", p)
		}
		matches, err := doublestar.Glob(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("matching %q: %w", p, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	sort.Strings(paths)

	var entries []Entry
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var f seedFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		for _, se := range f.Entries {
			src := Source(se.Source)
			if src == "" {
				src = SourceSeed
			}
			entries = append(entries, Entry{
				ID:         se.ID,
				Question:   se.Question,
				Answer:     se.Answer,
				Category:   se.Category,
				Tags:       se.Tags,
				Source:     src,
				Confidence: se.Confidence,
				CreatedBy:  se.CreatedBy,
			})
		}
	}
	return entries, nil
}
