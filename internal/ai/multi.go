package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"
)

// MultiGenerator tries providers in order until one succeeds, to ride out
// rate limits and transient outages on any single provider.
type MultiGenerator struct {
	generators []Generator
}

// NewMultiGenerator creates a fallback chain over the given generators
func NewMultiGenerator(generators ...Generator) *MultiGenerator {
	if len(generators) == 0 {
		panic("at least one generator required")
	}
	return &MultiGenerator{generators: generators}
}

func (m *MultiGenerator) Name() string {
	names := make([]string, len(m.generators))
	for i, g := range m.generators {
		names[i] = g.Name()
	}
	return "Multi[" + strings.Join(names, "+") + "]"
}

// GenerateJSON tries each generator in order, returning the first success
func (m *MultiGenerator) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	var lastErr error
	for i, g := range m.generators {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		log.Printf("[MultiGenerator] Trying %s (attempt %d/%d)...", g.Name(), i+1, len(m.generators))
		out, err := g.GenerateJSON(ctx, prompt, schema)
		if err == nil {
			return out, nil
		}
		log.Printf("[MultiGenerator] %s failed: %v", g.Name(), err)
		lastErr = err
	}
	return "", fmt.Errorf("all generators failed: %w", lastErr)
}
