package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	embeddingAPI   = "https://generativelanguage.googleapis.com/v1beta/models/gemini-embedding-001:embedContent"
	maxRetries     = 3
	initialBackoff = time.Second
)

// GeminiEmbedder calls the Gemini embedContent endpoint. The REST API is
// used directly because the genai SDK does not expose
// output_dimensionality, and the index depends on a fixed vector length.
type GeminiEmbedder struct {
	apiKey    string
	model     string
	dimension int
	client    *http.Client
}

// NewGeminiEmbedder creates an embedder for the given model and output
// dimensionality
func NewGeminiEmbedder(apiKey, model string, dimension int) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini embedder: API key not set")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("gemini embedder: invalid dimension %d", dimension)
	}
	return &GeminiEmbedder{
		apiKey:    apiKey,
		model:     model,
		dimension: dimension,
		client:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// EmbedDocument embeds text for indexing
func (e *GeminiEmbedder) EmbedDocument(ctx context.Context, text string) ([]float64, error) {
	return e.embed(ctx, text, "RETRIEVAL_DOCUMENT")
}

// EmbedQuery embeds text for retrieval
func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	return e.embed(ctx, text, "RETRIEVAL_QUERY")
}

// Dimension returns the configured output dimensionality
func (e *GeminiEmbedder) Dimension() int {
	return e.dimension
}

type embeddingRequest struct {
	Model                string       `json:"model"`
	Content              contentInput `json:"content"`
	TaskType             string       `json:"task_type,omitempty"`
	OutputDimensionality int          `json:"output_dimensionality,omitempty"`
}

type contentInput struct {
	Parts []partInput `json:"parts"`
}

type partInput struct {
	Text string `json:"text"`
}

type embeddingResponse struct {
	Embedding embeddingData `json:"embedding"`
}

type embeddingData struct {
	Values []float64 `json:"values"`
}

func (e *GeminiEmbedder) embed(ctx context.Context, text, taskType string) ([]float64, error) {
	reqBody := embeddingRequest{
		Model: e.model,
		Content: contentInput{
			Parts: []partInput{{Text: text}},
		},
		TaskType:             taskType,
		OutputDimensionality: e.dimension,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, "POST", embeddingAPI, bytes.NewBuffer(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", e.apiKey)

		resp, err := e.client.Do(req)
		if err != nil {
			if attempt == maxRetries-1 {
				return nil, fmt.Errorf("failed to send request after %d attempts: %w", maxRetries, err)
			}
			continue
		}

		if resp.StatusCode == http.StatusOK {
			var apiResp embeddingResponse
			if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
				resp.Body.Close()
				if attempt == maxRetries-1 {
					return nil, fmt.Errorf("failed to decode response: %w", err)
				}
				continue
			}
			resp.Body.Close()

			if len(apiResp.Embedding.Values) != e.dimension {
				return nil, fmt.Errorf("expected %d-dimensional embedding, got %d", e.dimension, len(apiResp.Embedding.Values))
			}
			return Normalize(apiResp.Embedding.Values), nil
		}
		resp.Body.Close()

		// Don't retry on 400 or 401 errors
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("embedding API error: %d", resp.StatusCode)
		}
		if attempt == maxRetries-1 {
			return nil, fmt.Errorf("embedding API error after %d attempts: %d", maxRetries, resp.StatusCode)
		}
	}

	return nil, ErrEmbeddingFailed
}
