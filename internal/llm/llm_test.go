package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestResolveProviderPrefixes(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("GROQ_API_KEY", "test-key")

	tests := []struct {
		flag      string
		wantName  string
		wantModel string
	}{
		{"anthropic:claude-sonnet-4-6", "anthropic", "claude-sonnet-4-6"},
		{"claude-sonnet-4-6", "anthropic", "claude-sonnet-4-6"},
		{"openai:gpt-5.2", "openai", "gpt-5.2"},
		{"gpt-5.2", "openai", "gpt-5.2"},
		{"o3-mini", "openai", "o3-mini"},
		{"groq:qwen-qwq-32b", "groq", "qwen-qwq-32b"},
		{"llama-3.3-70b-versatile", "groq", "llama-3.3-70b-versatile"},
		{"Qwen-QwQ-32B", "groq", "Qwen-QwQ-32B"},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			p, err := ResolveProvider(tt.flag)
			if err != nil {
				t.Fatal(err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("provider = %s, want %s", p.Name(), tt.wantName)
			}
			mo, ok := p.(*modelOverride)
			if !ok {
				t.Fatalf("expected model override, got %T", p)
			}
			if mo.Model() != tt.wantModel {
				t.Errorf("model = %q, want %q", mo.Model(), tt.wantModel)
			}
		})
	}
}

func TestResolveProviderMissingKey(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	if _, err := ResolveProvider("groq:llama-3.3-70b-versatile"); err == nil {
		t.Error("expected error when GROQ_API_KEY is unset")
	}
}

func TestResolveProviderAutoDetect(t *testing.T) {
	tests := []struct {
		name      string
		groq      string
		anthropic string
		openai    string
		want      string
	}{
		{"groq first", "k", "k", "k", "groq"},
		{"anthropic", "", "k", "k", "anthropic"},
		{"openai", "", "", "k", "openai"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GROQ_API_KEY", tt.groq)
			t.Setenv("ANTHROPIC_API_KEY", tt.anthropic)
			t.Setenv("OPENAI_API_KEY", tt.openai)
			p, err := ResolveProvider("")
			if err != nil {
				t.Fatal(err)
			}
			if p.Name() != tt.want {
				t.Errorf("got %s, want %s", p.Name(), tt.want)
			}
		})
	}
}

func TestResolveProviderNone(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := ResolveProvider(""); err == nil {
		t.Error("expected error when no API keys set")
	}
}

func TestMockProviderQueue(t *testing.T) {
	m := &MockProvider{Responses: []string{"a", "b"}}
	ctx := context.Background()
	var got []string
	for range 3 {
		out, err := m.Generate(ctx, "p", Settings{})
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, out)
	}
	if strings.Join(got, ",") != "a,b,b" {
		t.Errorf("responses = %v", got)
	}
	if m.Calls() != 3 || len(m.Prompts) != 3 {
		t.Errorf("calls = %d, prompts = %d", m.Calls(), len(m.Prompts))
	}
}

func TestAnthropicProviderGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "test-key" {
			t.Error("missing API key header")
		}
		if r.Header.Get("Anthropic-Version") == "" {
			t.Error("missing Anthropic-Version header")
		}
		var req anthropicRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.System != "be terse" {
			t.Errorf("system = %q", req.System)
		}
		if req.Model != anthropicDefaultModel {
			t.Errorf("model = %q", req.Model)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicContentBlock{{Type: "text", Text: `{"result": "ok"}`}},
		})
	}))
	defer srv.Close()

	p := &AnthropicProvider{apiKey: "test-key", apiURL: srv.URL, client: srv.Client()}
	got, err := p.Generate(context.Background(), "test prompt", Settings{System: "be terse", Temperature: 0.2})
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"result": "ok"}` {
		t.Errorf("unexpected response: %s", got)
	}
}

func TestChatProviderGenerate(t *testing.T) {
	for _, jsonMode := range []bool{true, false} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer test-key" {
				t.Error("missing Authorization header")
			}
			var req chatRequest
			json.NewDecoder(r.Body).Decode(&req)
			if jsonMode != (req.ResponseFormat != nil) {
				t.Errorf("json mode %v, response_format %+v", jsonMode, req.ResponseFormat)
			}
			if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
				t.Errorf("messages = %+v", req.Messages)
			}
			json.NewEncoder(w).Encode(chatResponse{
				Choices: []chatChoice{{Message: chatMessage{Content: "ok"}}},
			})
		}))

		p := &ChatProvider{name: "groq", apiKey: "test-key", apiURL: srv.URL, defaultModel: groqDefaultModel, client: srv.Client()}
		got, err := p.Generate(context.Background(), "hi", Settings{System: "sys", JSON: jsonMode})
		srv.Close()
		if err != nil {
			t.Fatal(err)
		}
		if got != "ok" {
			t.Errorf("got %q", got)
		}
	}
}

func TestChatProviderRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	p := &ChatProvider{name: "groq", apiKey: "k", apiURL: srv.URL, client: srv.Client()}
	_, err := p.Generate(context.Background(), "hi", Settings{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != 429 || !apiErr.Temporary() {
		t.Errorf("status = %d, temporary = %v", apiErr.Status, apiErr.Temporary())
	}
	if apiErr.RetryAfter != 7*time.Second {
		t.Errorf("retry after = %v", apiErr.RetryAfter)
	}
}

func TestChatProviderNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := &ChatProvider{name: "openai", apiKey: "k", apiURL: srv.URL, client: srv.Client()}
	if _, err := p.Generate(context.Background(), "hi", Settings{}); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fence on one line", "```{\"a\":1}```", `{"a":1}`},
		{"prose", "Sure! Here it is: {\"a\":1} Hope that helps.", `{"a":1}`},
		{"think block", "<think>maybe {x}</think>\n{\"a\":1}", `{"a":1}`},
		{"array", "result: [1,2]", `[1,2]`},
		{"no json", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.in); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// flaky fails with the given errors before succeeding.
type flaky struct {
	errs  []error
	calls int
}

func (f *flaky) Name() string { return "flaky" }

func (f *flaky) Generate(context.Context, string, Settings) (string, error) {
	f.calls++
	if f.calls <= len(f.errs) {
		return "", f.errs[f.calls-1]
	}
	return "done", nil
}

func noSleep(r *Retrying) *Retrying {
	r.sleep = func(context.Context, time.Duration) error { return nil }
	return r
}

func TestRetryingRecovers(t *testing.T) {
	p := &flaky{errs: []error{
		&APIError{Provider: "flaky", Status: 429},
		&APIError{Provider: "flaky", Status: 503},
	}}
	r := noSleep(WithRetry(p, DefaultRetryConfig(), nil))

	got, err := r.Generate(context.Background(), "x", Settings{})
	if err != nil {
		t.Fatal(err)
	}
	if got != "done" || p.calls != 3 {
		t.Errorf("got %q after %d calls", got, p.calls)
	}
	if r.Name() != "flaky" {
		t.Errorf("name = %s", r.Name())
	}
}

func TestRetryingStopsOnPermanentError(t *testing.T) {
	p := &flaky{errs: []error{&APIError{Provider: "flaky", Status: 401}}}
	r := noSleep(WithRetry(p, DefaultRetryConfig(), nil))

	if _, err := r.Generate(context.Background(), "x", Settings{}); err == nil {
		t.Fatal("expected error")
	}
	if p.calls != 1 {
		t.Errorf("calls = %d, want 1", p.calls)
	}
}

func TestRetryingGivesUp(t *testing.T) {
	errs := make([]error, 10)
	for i := range errs {
		errs[i] = &APIError{Provider: "flaky", Status: 500}
	}
	p := &flaky{errs: errs}
	cfg := DefaultRetryConfig()
	cfg.MaxRetries = 2
	cfg.FailureThreshold = 0
	r := noSleep(WithRetry(p, cfg, nil))

	_, err := r.Generate(context.Background(), "x", Settings{})
	if err == nil || !strings.Contains(err.Error(), "failed after 3 attempts") {
		t.Fatalf("err = %v", err)
	}
	if p.calls != 3 {
		t.Errorf("calls = %d, want 3", p.calls)
	}
}

func TestRetryingHonorsRetryAfter(t *testing.T) {
	p := &flaky{errs: []error{&APIError{Provider: "flaky", Status: 429, RetryAfter: 9 * time.Second}}}
	r := WithRetry(p, DefaultRetryConfig(), nil)
	var waits []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	if _, err := r.Generate(context.Background(), "x", Settings{}); err != nil {
		t.Fatal(err)
	}
	if len(waits) != 1 || waits[0] != 9*time.Second {
		t.Errorf("waits = %v", waits)
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	if cb.Open() {
		t.Fatal("opened after one failure")
	}
	cb.RecordFailure()
	if !errors.Is(cb.Allow(), ErrCircuitOpen) {
		t.Fatal("expected open circuit")
	}
	now = now.Add(2 * time.Minute)
	if cb.Open() {
		t.Error("expected half-open probe after timeout")
	}
	cb.RecordSuccess()
	if cb.Open() {
		t.Error("expected closed after success")
	}
}

func TestIsRetriable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&APIError{Status: 429}, true},
		{&APIError{Status: 502}, true},
		{&APIError{Status: 400}, false},
		{context.DeadlineExceeded, true},
		{context.Canceled, false},
		{errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := IsRetriable(tt.err); got != tt.want {
			t.Errorf("IsRetriable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestTruncateBodyKeepsRunes(t *testing.T) {
	body := strings.Repeat("日本", 10)
	for n := 1; n < len(body); n++ {
		got := truncateBody(body, n)
		if !utf8.ValidString(got) {
			t.Fatalf("truncateBody(%d) = %q, not valid UTF-8", n, got)
		}
	}
	if got := truncateBody("short", 10); got != "short" {
		t.Errorf("got %q, want unchanged", got)
	}
}
