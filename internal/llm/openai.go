package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
)

const (
	openaiAPIURL       = "https://api.openai.com/v1/chat/completions"
	openaiDefaultModel = "gpt-4o"

	groqAPIURL       = "https://api.groq.com/openai/v1/chat/completions"
	groqDefaultModel = "llama-3.3-70b-versatile"
)

// ChatProvider implements Provider for OpenAI-compatible chat completion
// APIs. OpenAI and Groq share it with different endpoints and keys.
type ChatProvider struct {
	name         string
	apiKey       string
	apiURL       string
	defaultModel string
	client       *http.Client
}

// NewOpenAI creates an OpenAI provider using the OPENAI_API_KEY env var.
func NewOpenAI() (*ChatProvider, error) {
	return newChat("openai", "OPENAI_API_KEY", openaiAPIURL, openaiDefaultModel)
}

// NewGroq creates a Groq provider using the GROQ_API_KEY env var.
func NewGroq() (*ChatProvider, error) {
	return newChat("groq", "GROQ_API_KEY", groqAPIURL, groqDefaultModel)
}

func newChat(name, env, url, model string) (*ChatProvider, error) {
	key := os.Getenv(env)
	if key == "" {
		return nil, fmt.Errorf("%s environment variable not set", env)
	}
	return &ChatProvider{name: name, apiKey: key, apiURL: url, defaultModel: model, client: &http.Client{}}, nil
}

func (c *ChatProvider) Name() string { return c.name }

func (c *ChatProvider) Generate(ctx context.Context, prompt string, s Settings) (string, error) {
	req := chatRequest{
		Model:       s.Model,
		MaxTokens:   s.MaxTokens,
		Temperature: s.Temperature,
		Seed:        s.Seed,
	}
	if req.Model == "" {
		req.Model = c.defaultModel
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = 4096
	}
	if s.System != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: s.System})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt})
	if s.JSON {
		req.ResponseFormat = &chatResponseFormat{Type: "json_object"}
	}

	raw, err := postJSON(ctx, c.client, c.name, c.apiURL, map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	}, req)
	if err != nil {
		return "", err
	}

	var result chatResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("%s: parse response: %w", c.name, err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices in response", c.name)
	}
	return result.Choices[0].Message.Content, nil
}

type chatRequest struct {
	Model          string              `json:"model"`
	MaxTokens      int                 `json:"max_tokens"`
	Temperature    float64             `json:"temperature"`
	Seed           *int                `json:"seed,omitempty"`
	Messages       []chatMessage       `json:"messages"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}
