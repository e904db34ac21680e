package llm

import (
	"context"
	"sync"
)

// MockProvider is a test double that returns canned responses. When
// Responses is non-empty each call consumes the next entry and the last one
// repeats; otherwise Response is returned.
type MockProvider struct {
	Response  string
	Responses []string
	Err       error

	mu      sync.Mutex
	calls   int
	Prompts []string
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Generate(_ context.Context, prompt string, _ Settings) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, prompt)
	i := m.calls
	m.calls++

	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return m.Response, nil
	}
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	return m.Responses[i], nil
}

// Calls returns how many times Generate was invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
