// Package knowledge builds and queries the store's retrieval index: pricing
// rows from the platform are embedded once and ranked by cosine similarity
// against the caller's utterance.
package knowledge

import (
	"math"
	"sort"
)

// Document is one retrievable knowledge snippet.
type Document struct {
	Content string
}

// Index is an immutable embedded document set. Rebuilds produce a new Index
// and swap it in whole.
type Index struct {
	docs    []Document
	vectors [][]float32
}

func newIndex(docs []Document, vectors [][]float32) *Index {
	return &Index{docs: docs, vectors: vectors}
}

// Len reports the number of indexed documents.
func (i *Index) Len() int {
	return len(i.docs)
}

// Search returns the contents of the top-k documents by cosine similarity
// to the query vector, best first.
func (i *Index) Search(query []float32, k int) []string {
	type scored struct {
		idx   int
		score float64
	}

	ranked := make([]scored, 0, len(i.vectors))
	for idx, vec := range i.vectors {
		ranked = append(ranked, scored{idx: idx, score: cosineSimilarity(query, vec)})
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	if k > len(ranked) {
		k = len(ranked)
	}

	results := make([]string, 0, k)
	for _, r := range ranked[:k] {
		results = append(results, i.docs[r.idx].Content)
	}
	return results
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
