package llm

import (
	"context"
	"fmt"
	"log"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiProvider generates text through the Gemini API. Its large context
// window makes it the natural target for long filing analysis.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float32
}

type GeminiOption func(*GeminiProvider)

func GeminiWithModel(model string) GeminiOption {
	return func(p *GeminiProvider) {
		p.model = model
	}
}

func GeminiWithTemperature(t float32) GeminiOption {
	return func(p *GeminiProvider) {
		p.temperature = t
	}
}

func NewGeminiProvider(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	p := &GeminiProvider{
		client:      client,
		model:       defaultGeminiModel,
		temperature: 0.3,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Capabilities() Capabilities {
	return Capabilities{
		ContextWindow:       1000000,
		SupportsLongContext: true,
		Languages:           []string{"ko", "en"},
		CostTier:            "standard",
		SpeedTier:           "standard",
	}
}

func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	model := p.client.GenerativeModel(p.model)
	model.SetTemperature(p.temperature)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason != genai.FinishReasonStop && candidate.FinishReason != genai.FinishReasonUnspecified {
		log.Printf("Warning: gemini candidate finished with reason: %s", candidate.FinishReason)
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var text string
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (p *GeminiProvider) Close() error {
	return p.client.Close()
}
