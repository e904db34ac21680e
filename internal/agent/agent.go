// Package agent implements the three model-assisted stages of a scouting
// run: triage, code location and planning. Every stage has a deterministic
// fallback, so a missing or misbehaving model degrades output quality but
// never fails the run.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/dshills/issuescout/internal/llm"
	"github.com/dshills/issuescout/internal/logging"
	"github.com/dshills/issuescout/internal/prompt"
	"github.com/dshills/issuescout/internal/schema"
)

// ErrInvalidOutput is returned when a model answer fails validation even
// after a repair attempt.
var ErrInvalidOutput = errors.New("agent: invalid model output")

// Model selects a provider and its sampling settings for one agent.
type Model struct {
	Provider    llm.Provider
	Name        string
	Temperature float64
	MaxTokens   int
}

func (m Model) settings(system string, maxTokens int, jsonMode bool) llm.Settings {
	s := llm.Settings{
		Model:       m.Name,
		System:      system,
		Temperature: m.Temperature,
		MaxTokens:   maxTokens,
		JSON:        jsonMode,
	}
	if m.MaxTokens > 0 && m.MaxTokens < maxTokens {
		s.MaxTokens = m.MaxTokens
	}
	return s
}

func orDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return logging.Discard()
	}
	return l
}

// generateJSON asks for a JSON answer, validates it and, if validation
// fails, sends one repair prompt listing the problems.
func generateJSON[T any](ctx context.Context, p llm.Provider, text string, s llm.Settings, validate func(*T) []schema.ValidationError) (*T, error) {
	raw, err := p.Generate(ctx, text, s)
	if err != nil {
		return nil, err
	}
	out, errs := decode(raw, validate)
	if len(errs) == 0 {
		return out, nil
	}

	repaired, err := p.Generate(ctx, prompt.BuildRepair(raw, errs), s)
	if err != nil {
		return nil, err
	}
	out, errs = decode(repaired, validate)
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOutput, errs[0])
	}
	return out, nil
}

func decode[T any](raw string, validate func(*T) []schema.ValidationError) (*T, []schema.ValidationError) {
	var out T
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &out); err != nil {
		return nil, []schema.ValidationError{{Path: "$", Message: "invalid JSON: " + err.Error()}}
	}
	if errs := validate(&out); len(errs) > 0 {
		return nil, errs
	}
	return &out, nil
}
