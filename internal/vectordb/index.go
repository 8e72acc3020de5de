// Package vectordb provides an embedding-ranked knowledge index on chromem-go.
package vectordb

import (
	"context"
	"fmt"
	"math"
	"strings"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/handoff/internal/embeddings"
	"github.com/ziadkadry99/handoff/internal/knowledge"
)

const collectionName = "knowledge"

// KnowledgeIndex ranks active knowledge entries by cosine similarity between
// the caller's question and each stored question.
type KnowledgeIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
}

// NewKnowledgeIndex creates an empty in-memory index. Populate it with
// knowledge.Store.Reindex.
func NewKnowledgeIndex(embedder embeddings.Embedder) (*KnowledgeIndex, error) {
	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(collectionName, nil, embeddings.ToChromemFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &KnowledgeIndex{db: db, collection: col, embedder: embedder}, nil
}

// Put adds or replaces the entry's question. Inactive entries are removed.
func (i *KnowledgeIndex) Put(ctx context.Context, e knowledge.Entry) error {
	if !e.IsActive {
		return i.Remove(ctx, e.ID)
	}
	err := i.collection.AddDocument(ctx, chromem.Document{
		ID:      e.ID,
		Content: e.Question,
		Metadata: map[string]string{
			"category": e.Category,
			"source":   string(e.Source),
		},
	})
	if err != nil {
		return fmt.Errorf("indexing %s: %w", e.ID, err)
	}
	return nil
}

// Remove drops an entry from the index. Unknown ids are ignored.
func (i *KnowledgeIndex) Remove(ctx context.Context, id string) error {
	if err := i.collection.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("removing %s: %w", id, err)
	}
	return nil
}

// Best returns the nearest stored question, or nil when the index is empty.
func (i *KnowledgeIndex) Best(ctx context.Context, question string) (*knowledge.Hit, error) {
	if strings.TrimSpace(question) == "" || i.collection.Count() == 0 {
		return nil, nil
	}

	results, err := i.collection.Query(ctx, question, 1, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	score := float64(results[0].Similarity)
	if math.IsNaN(score) || score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}
	return &knowledge.Hit{ID: results[0].ID, Score: score}, nil
}

// Count returns the number of indexed entries.
func (i *KnowledgeIndex) Count() int {
	return i.collection.Count()
}

// Embedder returns the embedder used for questions.
func (i *KnowledgeIndex) Embedder() embeddings.Embedder {
	return i.embedder
}
