package embeddings

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/ziadkadry99/handoff/internal/lexicon"
)

const defaultLexicalDims = 256

// LexicalEmbedder hashes the content words of a text into a fixed-size
// bag-of-words vector. It needs no network and gives the vector index a
// deterministic offline embedding.
type LexicalEmbedder struct {
	dims int
}

// NewLexicalEmbedder creates a hashing embedder. dims <= 0 selects 256.
func NewLexicalEmbedder(dims int) *LexicalEmbedder {
	if dims <= 0 {
		dims = defaultLexicalDims
	}
	return &LexicalEmbedder{dims: dims}
}

func (e *LexicalEmbedder) Name() string    { return "lexical" }
func (e *LexicalEmbedder) Dimensions() int { return e.dims }

func (e *LexicalEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *LexicalEmbedder) vector(text string) []float32 {
	vec := make([]float32, e.dims)
	for _, w := range lexicon.Terms(text) {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%uint32(e.dims)] += 1
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		// chromem rejects zero vectors.
		vec[0] = 1
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
