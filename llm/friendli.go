package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const defaultFriendliEndpoint = "https://api.friendli.ai/serverless/v1/chat/completions"

// FriendliProvider generates text through the Friendli serverless
// chat-completions API. Fast and cheap, suited to short analysis tasks.
type FriendliProvider struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

type FriendliOption func(*FriendliProvider)

func FriendliWithEndpoint(endpoint string) FriendliOption {
	return func(p *FriendliProvider) {
		p.endpoint = endpoint
	}
}

func NewFriendliProvider(apiKey, model string, opts ...FriendliOption) (*FriendliProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("friendli api key not set")
	}
	if model == "" {
		return nil, fmt.Errorf("friendli model not set")
	}

	p := &FriendliProvider{
		apiKey:   apiKey,
		model:    model,
		endpoint: defaultFriendliEndpoint,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *FriendliProvider) Name() string { return "friendli" }

func (p *FriendliProvider) Capabilities() Capabilities {
	return Capabilities{
		ContextWindow:       32000,
		SupportsLongContext: false,
		Languages:           []string{"ko", "en"},
		CostTier:            "low",
		SpeedTier:           "fast",
	}
}

func (p *FriendliProvider) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("Friendli API error: Status %d, Body: %s", resp.StatusCode, string(bodyBytes))
		return "", fmt.Errorf("API error: %d - %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason,omitempty"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(apiResp.Choices) == 0 || apiResp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return apiResp.Choices[0].Message.Content, nil
}
