package ai

import (
	"context"
	"errors"

	"google.golang.org/genai"
)

// ErrMalformedOutput indicates the model returned text that could not be
// parsed into the requested JSON structure.
var ErrMalformedOutput = errors.New("malformed model output")

// Generator defines the interface for LLM providers that produce
// schema-constrained JSON
type Generator interface {
	Name() string
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
}

// ProviderConfig holds configuration for an OpenAI-compatible provider
type ProviderConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string
}
