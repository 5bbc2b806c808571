package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoProvider means the router has no provider able to serve a task.
	ErrNoProvider = errors.New("no provider available")
	// ErrEmptyResponse means the provider returned no usable text.
	ErrEmptyResponse = errors.New("provider returned empty response")
)

// Task identifies what kind of generation work is being requested. The
// router uses it to pick a provider.
type Task string

const (
	TaskLongContextAnalysis Task = "long_context_analysis"
	TaskQuickAnalysis       Task = "quick_analysis"
)

// Capabilities describes what a provider can do. The router consults them
// when no explicit route is configured for a task.
type Capabilities struct {
	ContextWindow       int
	SupportsLongContext bool
	Languages           []string
	CostTier            string
	SpeedTier           string
}

// Provider is a text generation backend.
type Provider interface {
	Name() string
	Capabilities() Capabilities
	Generate(ctx context.Context, prompt string) (string, error)
}

// GenerationError wraps a provider failure with the provider's name, so
// callers can decide whether to fall back to another provider.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
