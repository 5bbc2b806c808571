// Package embedding turns text into fixed-length normalized vectors.
// The embedding function is an injected dependency of the index and the
// retrieval engine; everything downstream assumes unit-length vectors so
// cosine similarity reduces to a dot product.
package embedding

import (
	"context"
	"errors"
	"math"
)

// ErrEmbeddingFailed is returned when the backing model could not produce
// a vector after retries
var ErrEmbeddingFailed = errors.New("failed to generate embedding")

// Embedder converts text into a normalized fixed-length vector.
// EmbedDocument is used at indexing time, EmbedQuery at retrieval time;
// models that don't distinguish the two may implement them identically.
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float64, error)
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
	Dimension() int
}

// Normalize scales v to unit length in place and returns it. Zero vectors
// are returned unchanged.
func Normalize(v []float64) []float64 {
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range v {
			v[i] /= norm
		}
	}
	return v
}
