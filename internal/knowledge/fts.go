package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/ziadkadry99/handoff/internal/db"
	"github.com/ziadkadry99/handoff/internal/lexicon"
)

// FTSIndex finds candidates with the SQLite FTS5 table maintained by
// triggers on knowledge_entries, matching the question column only, then
// scores every candidate by term overlap with the stored question.
type FTSIndex struct {
	db *db.DB
}

// NewFTSIndex creates an index over the knowledge_fts table.
func NewFTSIndex(database *db.DB) *FTSIndex {
	return &FTSIndex{db: database}
}

// Put is a no-op: the schema triggers keep knowledge_fts in sync.
func (i *FTSIndex) Put(ctx context.Context, e Entry) error { return nil }

// Remove is a no-op: inactive rows are filtered at query time.
func (i *FTSIndex) Remove(ctx context.Context, id string) error { return nil }

// Best returns the highest-scoring active candidate, or nil. Ties go to the
// better bm25 rank.
func (i *FTSIndex) Best(ctx context.Context, question string) (*Hit, error) {
	terms := lexicon.Terms(question)
	if len(terms) == 0 {
		return nil, nil
	}

	// Every question-column match is scored; a rank cutoff could drop an
	// exact question behind entries that repeat its words.
	rows, err := i.db.QueryContext(ctx,
		`SELECT e.id, e.question
		 FROM knowledge_fts fts
		 JOIN knowledge_entries e ON e.rowid = fts.rowid
		 WHERE knowledge_fts MATCH ? AND e.is_active = 1
		 ORDER BY fts.rank`,
		matchExpr(terms),
	)
	if err != nil {
		return nil, fmt.Errorf("fts query: %w", err)
	}
	defer rows.Close()

	var best *Hit
	for rows.Next() {
		var id, q string
		if err := rows.Scan(&id, &q); err != nil {
			return nil, fmt.Errorf("scanning fts candidate: %w", err)
		}
		score := lexicon.Similarity(terms, lexicon.Terms(q))
		if best == nil || score > best.Score {
			best = &Hit{ID: id, Score: score}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading fts candidates: %w", err)
	}
	return best, nil
}

// matchExpr builds an FTS5 query matching any of the terms in the question
// column.
func matchExpr(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return "question : (" + strings.Join(quoted, " OR ") + ")"
}
