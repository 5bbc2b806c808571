// Package index is a brute-force cosine-similarity index over chunk
// vectors. Vectors are assumed L2-normalized, so similarity is a plain dot
// product. Results are ordered by descending score with ties broken by
// insertion order, which keeps searches reproducible.
package index

import (
	"fmt"
	"sort"
	"sync"

	"corpinsight-backend/models"
)

// SearchResult is one scored chunk
type SearchResult struct {
	Chunk models.Chunk
	Score float64
}

type entry struct {
	chunk  models.Chunk
	vector []float64
	seq    int64
}

// Index holds every indexed chunk vector. Reads run concurrently; writes
// are exclusive.
type Index struct {
	mu        sync.RWMutex
	dimension int
	entries   []entry
	nextSeq   int64
}

// New creates an empty index for vectors of the given dimension
func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("index: invalid dimension %d", dimension)
	}
	return &Index{dimension: dimension}, nil
}

// Add appends a chunk and its vector to the index
func (ix *Index) Add(chunk models.Chunk, vector []float64) error {
	if len(vector) != ix.dimension {
		return fmt.Errorf("index: vector must be %d dimensions, got %d", ix.dimension, len(vector))
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = append(ix.entries, entry{chunk: chunk, vector: vector, seq: ix.nextSeq})
	ix.nextSeq++
	return nil
}

// Search returns up to k chunks ranked by descending cosine similarity to
// the query vector, dropping results below threshold. k <= 0 or an empty
// index yields an empty result, never an error.
func (ix *Index) Search(query []float64, k int, threshold float64) []SearchResult {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if k <= 0 || len(ix.entries) == 0 {
		return nil
	}

	scored := make([]SearchResult, 0, len(ix.entries))
	seqs := make(map[string]int64, len(ix.entries))
	for _, e := range ix.entries {
		scored = append(scored, SearchResult{Chunk: e.chunk, Score: dot(e.vector, query)})
		seqs[e.chunk.ChunkID] = e.seq
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return seqs[scored[i].Chunk.ChunkID] < seqs[scored[j].Chunk.ChunkID]
	})

	// Top k first, then the threshold cut. The list is sorted, so the first
	// below-threshold score ends the scan.
	var results []SearchResult
	for _, r := range scored {
		if len(results) == k || r.Score < threshold {
			break
		}
		results = append(results, r)
	}
	return results
}

// RemoveDocument drops every chunk belonging to documentID and reports how
// many were removed
func (ix *Index) RemoveDocument(documentID string) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	kept := ix.entries[:0]
	removed := 0
	for _, e := range ix.entries {
		if e.chunk.DocumentID == documentID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	ix.entries = kept
	return removed
}

// RemoveAll empties the index, leaving it as freshly initialized
func (ix *Index) RemoveAll() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = nil
	ix.nextSeq = 0
}

// Len reports the number of indexed chunks
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Dimension returns the vector dimension the index accepts
func (ix *Index) Dimension() int {
	return ix.dimension
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
