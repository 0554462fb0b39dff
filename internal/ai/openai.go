package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// BaseGenerator implements Generator for OpenAI-compatible chat APIs.
// These endpoints have no native response-schema support, so the schema is
// rendered into the prompt instead.
type BaseGenerator struct {
	config ProviderConfig
	client *http.Client
}

// NewBaseGenerator creates a generator for an OpenAI-compatible endpoint
func NewBaseGenerator(config ProviderConfig) *BaseGenerator {
	return &BaseGenerator{
		config: config,
		client: &http.Client{Timeout: 90 * time.Second},
	}
}

func (p *BaseGenerator) Name() string {
	return p.config.Name
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

// GenerateJSON renders the schema into the prompt, calls the chat endpoint
// and returns the cleaned JSON text
func (p *BaseGenerator) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema: %w", err)
	}

	fullPrompt := fmt.Sprintf(`%s

Return ONLY a raw JSON object matching this schema:
%s
Do not include any markdown formatting (like json code blocks).
Do not include any other text.`, prompt, string(schemaJSON))

	reqBody := chatRequest{
		Model: p.config.Model,
		Messages: []chatMessage{
			{Role: "user", Content: fullPrompt},
		},
	}

	raw, err := p.sendRequest(ctx, reqBody)
	if err != nil {
		return "", err
	}

	raw = CleanJSON(raw)
	if !json.Valid([]byte(raw)) {
		return "", fmt.Errorf("%w: response is not valid json", ErrMalformedOutput)
	}
	return raw, nil
}

// sendRequest handles HTTP requests to the AI provider
func (p *BaseGenerator) sendRequest(ctx context.Context, reqBody chatRequest) (string, error) {
	log.Printf("[%s] Sending request...", p.config.Name)

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	log.Printf("[%s] Response status: %d", p.config.Name, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("api error: %d %s", resp.StatusCode, string(bodyBytes))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}

	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	log.Printf("[%s] Success, response length: %d", p.config.Name, len(content))
	return content, nil
}

// NewGroqGenerator creates a Groq generator
func NewGroqGenerator(apiKey, model string) *BaseGenerator {
	return NewBaseGenerator(ProviderConfig{
		Name:    "Groq",
		BaseURL: "https://api.groq.com/openai/v1/chat/completions",
		APIKey:  apiKey,
		Model:   model,
	})
}

// NewCerebrasGenerator creates a Cerebras generator
func NewCerebrasGenerator(apiKey, model string) *BaseGenerator {
	return NewBaseGenerator(ProviderConfig{
		Name:    "Cerebras",
		BaseURL: "https://api.cerebras.ai/v1/chat/completions",
		APIKey:  apiKey,
		Model:   model,
	})
}
