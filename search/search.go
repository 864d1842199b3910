// Package search ranks bookmarked pages against a query by cosine
// similarity over the cache's persisted embedding vectors.
package search

import (
	"math"
	"sort"

	"bookmark/bookmarks"
	"bookmark/store"
)

// DefaultTopK is the number of results returned when the caller does not
// ask for a specific count.
const DefaultTopK = 5

// Result is one ranked bookmark.
type Result struct {
	Score    float64
	Bookmark bookmarks.Bookmark
}

// Cosine returns dot(a,b) / (|a|·|b|). There is no guard against zero
// vectors: a zero norm yields NaN, which a well-formed embedding model
// never produces.
func Cosine(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := 0; i < len(a) && i < len(b); i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Search ranks every stored embedding against the query vector and returns
// the topK best, joined back to their bookmarks. Sidecars whose identifier
// matches no bookmark are skipped.
func Search(st *store.UrlStore, bs *bookmarks.Store, query []float64, topK int) ([]Result, error) {
	return rank(st, bs, query, topK, "")
}

// Similar ranks bookmarks against the stored vector of one cache entry,
// excluding the entry itself.
func Similar(st *store.UrlStore, bs *bookmarks.Store, id string, topK int) ([]Result, error) {
	vector, err := st.Embedding(id)
	if err != nil {
		return nil, err
	}
	if vector == nil {
		return nil, &NoEmbeddingError{Identifier: id}
	}
	return rank(st, bs, vector, topK, id)
}

// NoEmbeddingError reports a cache entry with no stored vector.
type NoEmbeddingError struct {
	Identifier string
}

func (e *NoEmbeddingError) Error() string {
	return "no embedding stored for " + e.Identifier
}

func rank(st *store.UrlStore, bs *bookmarks.Store, query []float64, topK int, exclude string) ([]Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	embeddings, err := st.Embeddings()
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(embeddings))
	for _, e := range embeddings {
		if e.Identifier == exclude {
			continue
		}
		b := bs.FindByIdentifier(e.Identifier)
		if b == nil {
			// Orphaned cache entry, nothing to show for it.
			continue
		}
		results = append(results, Result{
			Score:    Cosine(query, e.Vector),
			Bookmark: *b,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}
