package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

type route struct {
	prefix  string
	strip   bool
	factory func() (Provider, error)
}

func anthropicFactory() (Provider, error) { return NewAnthropic() }
func openaiFactory() (Provider, error)    { return NewOpenAI() }
func groqFactory() (Provider, error)      { return NewGroq() }

// routes are checked in order; explicit "vendor:" prefixes are stripped from
// the model name, bare model family prefixes are passed through.
var routes = []route{
	{"anthropic:", true, anthropicFactory},
	{"openai:", true, openaiFactory},
	{"groq:", true, groqFactory},
	{"claude", false, anthropicFactory},
	{"gpt", false, openaiFactory},
	{"o1", false, openaiFactory},
	{"o3", false, openaiFactory},
	{"llama", false, groqFactory},
	{"qwen", false, groqFactory},
	{"mixtral", false, groqFactory},
	{"gemma", false, groqFactory},
	{"deepseek", false, groqFactory},
}

// ResolveProvider selects an LLM provider based on the model flag and available API keys.
func ResolveProvider(modelFlag string) (Provider, error) {
	if modelFlag != "" {
		lower := strings.ToLower(modelFlag)
		for _, r := range routes {
			if !strings.HasPrefix(lower, r.prefix) {
				continue
			}
			p, err := r.factory()
			if err != nil {
				return nil, err
			}
			model := modelFlag
			if r.strip {
				model = modelFlag[len(r.prefix):]
			}
			return &modelOverride{Provider: p, model: model}, nil
		}
	}

	// Auto-detect from environment
	switch {
	case os.Getenv("GROQ_API_KEY") != "":
		return NewGroq()
	case os.Getenv("ANTHROPIC_API_KEY") != "":
		return NewAnthropic()
	case os.Getenv("OPENAI_API_KEY") != "":
		return NewOpenAI()
	}

	return nil, fmt.Errorf("no LLM provider configured: set GROQ_API_KEY, ANTHROPIC_API_KEY or OPENAI_API_KEY")
}

// modelOverride wraps a provider to override the model in settings.
type modelOverride struct {
	Provider
	model string
}

func (m *modelOverride) Generate(ctx context.Context, prompt string, s Settings) (string, error) {
	if m.model != "" {
		s.Model = m.model
	}
	return m.Provider.Generate(ctx, prompt, s)
}

// Model returns the overriding model name.
func (m *modelOverride) Model() string { return m.model }
