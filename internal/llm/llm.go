// Package llm defines the provider interface and implementations for LLM interaction.
package llm

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Settings configures the LLM request.
type Settings struct {
	Model       string
	System      string
	Temperature float64
	MaxTokens   int
	Seed        *int
	// JSON asks providers that support it for a JSON object response.
	JSON bool
}

// Provider generates text from a prompt using an LLM.
type Provider interface {
	Generate(ctx context.Context, prompt string, settings Settings) (string, error)
	Name() string
}

// APIError is a non-200 response from a provider's HTTP API.
type APIError struct {
	Provider   string
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API returned %d: %s", e.Provider, e.Status, e.Body)
}

// Temporary reports whether the request may succeed if retried.
func (e *APIError) Temporary() bool {
	return e.Status == 429 || e.Status >= 500
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
