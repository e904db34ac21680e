package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dshills/issuescout/internal/agent"
	"github.com/dshills/issuescout/internal/config"
	"github.com/dshills/issuescout/internal/github"
	"github.com/dshills/issuescout/internal/llm"
	"github.com/dshills/issuescout/internal/logging"
	"github.com/dshills/issuescout/internal/pipeline"
	"github.com/dshills/issuescout/internal/profile"
	"github.com/dshills/issuescout/internal/render"
	"github.com/dshills/issuescout/internal/store"
	"github.com/dshills/issuescout/internal/triage"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath  string
	verbose     bool
	profile     string
	weightsFile string
}

// env is the resolved runtime state for one command.
type env struct {
	cfg  config.Config
	log  *log.Logger
	prof *profile.Profile
	out  io.Writer
}

// setup loads configuration and the scoring profile. overrides are extra
// dot-notated keys from command flags.
func setup(g *globalFlags, overrides map[string]any, out io.Writer) (*env, error) {
	if overrides == nil {
		overrides = map[string]any{}
	}
	if g.profile != "" {
		overrides["scoring.profile"] = g.profile
	}
	if g.weightsFile != "" {
		overrides["scoring.weights_file"] = g.weightsFile
	}

	cfg, err := config.Load(config.LoadOptions{ConfigPath: g.configPath, FlagOverrides: overrides})
	if err != nil {
		return nil, exitError(3, "configuration error: %v", err)
	}

	level := cfg.Log.Level
	if g.verbose {
		level = "debug"
	}
	logger := logging.FromEnv(logging.Options{Level: level, Output: os.Stderr})

	prof, err := profile.Resolve(cfg.Scoring.Profile, cfg.Scoring.WeightsFile)
	if err != nil {
		return nil, exitError(3, "failed to load scoring profile: %v", err)
	}
	logger.Debug("loaded profile", "name", prof.Name)

	return &env{cfg: cfg, log: logger, prof: prof, out: out}, nil
}

func (e *env) githubClient() *github.Client {
	c := github.NewClient(e.cfg.GitHub.Token)
	if e.cfg.GitHub.BaseURL != "" {
		c.BaseURL = e.cfg.GitHub.BaseURL
	}
	c.Limiter = rate.NewLimiter(rate.Limit(e.cfg.GitHub.RequestsPerSecond), 5)
	if !c.HasToken() {
		e.log.Warn("no GitHub token configured, requests are limited to 60 per hour")
	}
	return c
}

func (e *env) retryConfig() llm.RetryConfig {
	rc := llm.DefaultRetryConfig()
	rc.MaxRetries = e.cfg.LLM.MaxRetries
	rc.MaxConcurrent = int64(e.cfg.LLM.MaxConcurrent)
	if e.cfg.LLM.Timeout > 0 {
		rc.Timeout = e.cfg.LLM.Timeout
	}
	return rc
}

// llmOptions selects how agents reach a model.
type llmOptions struct {
	model string
	noLLM bool
	// provider replaces provider resolution, used by tests.
	provider llm.Provider
}

// resolveModel returns a retrying provider for name, falling back to
// auto-detection from API keys when the configured model has no key.
func (e *env) resolveModel(name string) (agent.Model, error) {
	p, err := llm.ResolveProvider(name)
	if err != nil && e.cfg.LLM.Model == "" {
		if auto, autoErr := llm.ResolveProvider(""); autoErr == nil {
			e.log.Debug("configured model unavailable, using detected provider", "model", name, "provider", auto.Name())
			p, err, name = auto, nil, ""
		}
	}
	if err != nil {
		return agent.Model{}, err
	}
	return agent.Model{
		Provider:    llm.WithRetry(p, e.retryConfig(), e.log),
		Name:        name,
		Temperature: e.cfg.LLM.Temperature,
		MaxTokens:   e.cfg.LLM.MaxTokens,
	}, nil
}

// agents builds the three stages. The fast model serves triage and the
// locator, the powerful model writes the plan.
func (e *env) agents(o llmOptions) (*agent.Triage, *agent.Locator, *agent.Planner, error) {
	var fast, powerful agent.Model
	switch {
	case o.noLLM:
		e.log.Info("model calls disabled, using deterministic fallbacks")
	case o.provider != nil:
		fast = agent.Model{Provider: o.provider, Temperature: e.cfg.LLM.Temperature, MaxTokens: e.cfg.LLM.MaxTokens}
		powerful = fast
	default:
		fastName, powerfulName := e.cfg.LLM.FastModel, e.cfg.LLM.PowerfulModel
		if m := firstNonEmpty(o.model, e.cfg.LLM.Model); m != "" {
			fastName, powerfulName = m, m
		}
		var err error
		if fast, err = e.resolveModel(fastName); err != nil {
			return nil, nil, nil, exitError(4, "model provider error: %v (use --no-llm to skip model calls)", err)
		}
		if powerful, err = e.resolveModel(powerfulName); err != nil {
			return nil, nil, nil, exitError(4, "model provider error: %v (use --no-llm to skip model calls)", err)
		}
		e.log.Debug("using models", "fast", fast.Provider.Name()+"/"+fast.Name, "powerful", powerful.Provider.Name()+"/"+powerful.Name)
	}
	return &agent.Triage{Model: fast, Profile: e.prof, Log: e.log},
		&agent.Locator{Model: fast, Log: e.log},
		&agent.Planner{Model: powerful, Log: e.log},
		nil
}

func (e *env) listOptions() github.ListOptions {
	return github.ListOptions{BeginnerOnly: e.cfg.GitHub.BeginnerOnly, Max: e.cfg.GitHub.MaxIssues}
}

func (e *env) openStore() (*store.Store, error) {
	st, err := store.Open(e.cfg.Store.Path)
	if err != nil {
		return nil, exitError(3, "failed to open run log: %v", err)
	}
	return st, nil
}

// write sends content to path, or to e.out when path is empty. Markdown
// sent to an interactive terminal is rendered with glamour.
func (e *env) write(content, path string, markdown bool) error {
	if path != "" {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		e.log.Info("wrote output", "path", path)
		return nil
	}
	if markdown {
		if f, ok := e.out.(*os.File); ok && render.IsTerminal(f) {
			styled, err := render.Terminal(content, true, render.DefaultWidth)
			if err == nil {
				content = styled
			} else {
				e.log.Debug("terminal rendering failed", "err", err)
			}
		}
	}
	_, err := io.WriteString(e.out, content)
	return err
}

type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func exitError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// classify maps pipeline errors to exit codes: 3 input, 4 model provider,
// 5 model output, 6 GitHub.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ee *exitErr
	if errors.As(err, &ee) {
		return err
	}

	var ghErr *github.APIError
	var llmErr *llm.APIError
	var stageErr *pipeline.StageError
	switch {
	case errors.Is(err, triage.ErrInvalidRecord):
		return exitError(3, "invalid issue data: %v", err)
	case errors.Is(err, agent.ErrInvalidOutput):
		return exitError(5, "model output error: %v", err)
	case errors.As(err, &llmErr), errors.Is(err, llm.ErrCircuitOpen):
		return exitError(4, "model provider error: %v", err)
	case errors.As(err, &ghErr), errors.Is(err, github.ErrNotFound), errors.Is(err, github.ErrRateLimited):
		return exitError(6, "GitHub error: %v", err)
	case errors.As(err, &stageErr) && stageErr.Stage == pipeline.StageFetch:
		return exitError(6, "GitHub error: %v", err)
	case errors.Is(err, pipeline.ErrNoIssues):
		return exitError(1, "%v", err)
	}
	return err
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// checkFormat rejects output formats a command does not support.
func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return exitError(3, "unknown format: %s", format)
}
