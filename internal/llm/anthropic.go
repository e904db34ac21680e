package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
)

const (
	anthropicAPIURL       = "https://api.anthropic.com/v1/messages"
	anthropicDefaultModel = "claude-sonnet-4-6"
	anthropicAPIVersion   = "2023-06-01"
)

// AnthropicProvider implements Provider using the Anthropic Messages API.
type AnthropicProvider struct {
	apiKey string
	apiURL string
	client *http.Client
}

// NewAnthropic creates an Anthropic provider using the ANTHROPIC_API_KEY env var.
func NewAnthropic() (*AnthropicProvider, error) {
	key := os.Getenv("ANTHROPIC_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
	}
	return &AnthropicProvider{apiKey: key, apiURL: anthropicAPIURL, client: &http.Client{}}, nil
}

func (a *AnthropicProvider) Name() string { return "anthropic" }

func (a *AnthropicProvider) Generate(ctx context.Context, prompt string, s Settings) (string, error) {
	req := anthropicRequest{
		Model:       s.Model,
		MaxTokens:   s.MaxTokens,
		System:      s.System,
		Temperature: &s.Temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
	}
	if req.Model == "" {
		req.Model = anthropicDefaultModel
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = 4096
	}

	raw, err := postJSON(ctx, a.client, "anthropic", a.apiURL, map[string]string{
		"X-API-Key":         a.apiKey,
		"Anthropic-Version": anthropicAPIVersion,
	}, req)
	if err != nil {
		return "", err
	}

	var result anthropicResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("anthropic: parse response: %w", err)
	}
	for _, block := range result.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic: no text content in response")
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
