package retrieval

import (
	"context"
	"fmt"
	"strings"

	"corpinsight-backend/embedding"
	"corpinsight-backend/index"
	"corpinsight-backend/models"
)

const (
	defaultTopK      = 20
	defaultThreshold = 0.7
)

// Engine turns a natural-language query into ranked passages. The company
// filter is applied after the global top-K ranking, so a company with few
// relevant chunks yields few passages rather than pulling in weaker ones.
type Engine struct {
	embedder  embedding.Embedder
	index     *index.Index
	topK      int
	threshold float64
}

type Option func(*Engine)

func WithTopK(k int) Option {
	return func(e *Engine) {
		e.topK = k
	}
}

func WithThreshold(t float64) Option {
	return func(e *Engine) {
		e.threshold = t
	}
}

func New(embedder embedding.Embedder, ix *index.Index, opts ...Option) (*Engine, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder not set")
	}
	if ix == nil {
		return nil, fmt.Errorf("index not set")
	}

	e := &Engine{
		embedder:  embedder,
		index:     ix,
		topK:      defaultTopK,
		threshold: defaultThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Retrieve embeds the query, ranks all indexed chunks and keeps the ones
// belonging to companyID. An empty companyID skips the filter. Returns nil
// when nothing clears the score threshold.
func (e *Engine) Retrieve(ctx context.Context, query, companyID string) ([]models.RetrievedPassage, error) {
	vec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results := e.index.Search(vec, e.topK, e.threshold)

	filter := strings.ToUpper(strings.TrimSpace(companyID))
	var passages []models.RetrievedPassage
	for _, r := range results {
		if filter != "" && strings.ToUpper(r.Chunk.CompanyID) != filter {
			continue
		}
		passages = append(passages, models.RetrievedPassage{
			ChunkID:    r.Chunk.ChunkID,
			DocumentID: r.Chunk.DocumentID,
			CompanyID:  r.Chunk.CompanyID,
			Text:       r.Chunk.Text,
			Score:      r.Score,
		})
	}
	return passages, nil
}
