package providers

import (
	"context"
)

// Config represents a single vision request to an LLM provider
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
	// Image is the raw page image sent alongside the prompt. Empty means text only.
	Image []byte
	// JSON asks the provider to constrain the answer to a JSON document when it can
	JSON bool
}

// Provider defines the interface for an LLM provider
type Provider interface {
	ExtractText(ctx context.Context, config Config) (string, error)
}
