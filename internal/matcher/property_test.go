package matcher

import (
	"context"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/ziadkadry99/handoff/internal/db"
	"github.com/ziadkadry99/handoff/internal/knowledge"
)

var (
	contentWords = []string{"keratin", "curly", "hair", "balayage", "beard", "nails", "gel", "wax", "trim", "gloss"}
	stopWords    = []string{"who", "are", "you", "what", "is", "it", "do", "the", "can", "i"}
)

// TestLookupFindsStoredQuestionProperty stores random entries whose answers
// share vocabulary and whose questions are often made of stop words only,
// then checks that asking any stored question verbatim is answered by the
// text stage above the threshold.
func TestLookupFindsStoredQuestionProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		database, err := db.OpenMemory()
		if err != nil {
			rt.Fatalf("OpenMemory: %v", err)
		}
		defer database.Close()

		store := knowledge.NewStore(database, nil)
		ctx := context.Background()

		vocab := append(append([]string{}, contentWords...), stopWords...)
		n := rapid.IntRange(1, 15).Draw(rt, "entries")
		questions := make([]string, n)
		for i := range questions {
			var words []string
			if rapid.Bool().Draw(rt, "stopOnly") {
				words = rapid.SliceOfN(rapid.SampledFrom(stopWords), 1, 4).Draw(rt, "stopQuestion")
			} else {
				words = rapid.SliceOfN(rapid.SampledFrom(vocab), 1, 5).Draw(rt, "question")
			}
			answer := rapid.SliceOfN(rapid.SampledFrom(contentWords), 3, 12).Draw(rt, "answer")

			questions[i] = strings.Join(words, " ") + "?"
			_, err := store.Upsert(ctx, knowledge.Entry{
				Question: questions[i],
				Answer:   strings.Join(answer, " "),
				Tags:     rapid.SliceOfN(rapid.SampledFrom(contentWords), 0, 3).Draw(rt, "tags"),
			})
			if err != nil {
				rt.Fatalf("Upsert: %v", err)
			}
		}

		m := New(store, Config{})
		for _, q := range questions {
			res, err := m.Lookup(ctx, q)
			if err != nil {
				rt.Fatalf("Lookup(%q): %v", q, err)
			}
			if !res.Found || res.Stage != StageText {
				rt.Fatalf("Lookup(%q) = %+v, want a text match", q, res)
			}
			if res.Score <= m.Threshold() {
				rt.Fatalf("Lookup(%q) score = %v, want above %v", q, res.Score, m.Threshold())
			}
		}
	})
}
