// Package config resolves issuescout settings from defaults, a YAML config
// file, ISSUESCOUT_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// AppName is used for XDG directories and the env prefix.
const AppName = "issuescout"

// Config is the effective configuration.
type Config struct {
	GitHub  GitHubConfig  `mapstructure:"github"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Scoring ScoringConfig `mapstructure:"scoring"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Store   StoreConfig   `mapstructure:"store"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
}

type GitHubConfig struct {
	Token             string  `mapstructure:"token"`
	BaseURL           string  `mapstructure:"base_url"`
	MaxIssues         int     `mapstructure:"max_issues"`
	BeginnerOnly      bool    `mapstructure:"beginner_only"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

type LLMConfig struct {
	Model         string        `mapstructure:"model"`
	FastModel     string        `mapstructure:"fast_model"`
	PowerfulModel string        `mapstructure:"powerful_model"`
	Temperature   float64       `mapstructure:"temperature"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	MaxRetries    int           `mapstructure:"max_retries"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type ScoringConfig struct {
	Profile     string `mapstructure:"profile"`
	WeightsFile string `mapstructure:"weights_file"`
	TopK        int    `mapstructure:"top_k"`
}

type CacheConfig struct {
	Dir    string        `mapstructure:"dir"`
	MaxAge time.Duration `mapstructure:"max_age"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	cacheDir := filepath.Join(xdg.CacheHome, AppName)
	return Config{
		GitHub: GitHubConfig{
			BaseURL:           "https://api.github.com",
			MaxIssues:         30,
			BeginnerOnly:      true,
			RequestsPerSecond: 1,
		},
		LLM: LLMConfig{
			FastModel:     "groq:qwen-qwq-32b",
			PowerfulModel: "groq:llama-3.3-70b-versatile",
			Temperature:   0.3,
			MaxTokens:     4096,
			MaxConcurrent: 3,
			MaxRetries:    4,
			Timeout:       120 * time.Second,
		},
		Scoring: ScoringConfig{
			Profile: "default",
			TopK:    3,
		},
		Cache: CacheConfig{
			Dir:    cacheDir,
			MaxAge: 7 * 24 * time.Hour,
		},
		Store: StoreConfig{
			Path: filepath.Join(xdg.DataHome, AppName, "runs.db"),
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8787",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadOptions controls configuration loading.
type LoadOptions struct {
	// ConfigPath overrides the XDG config file location.
	ConfigPath string
	// FlagOverrides are highest-priority dot-notated keys from CLI flags.
	FlagOverrides map[string]any
}

// Load returns the effective configuration after applying precedence:
// defaults < config file < env (ISSUESCOUT_*, GITHUB_TOKEN) < flags.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v)

	path := opts.ConfigPath
	if path == "" {
		path = UserConfigPath()
	}
	if err := mergeConfigFile(v, path, opts.ConfigPath != ""); err != nil {
		return Config{}, err
	}

	v.SetEnvPrefix(AppName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if tok := os.Getenv("GITHUB_TOKEN"); tok != "" && os.Getenv("ISSUESCOUT_GITHUB_TOKEN") == "" {
		v.Set("github.token", tok)
	}

	for k, val := range opts.FlagOverrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config.Load: unmarshal: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()

	v.SetDefault("github.token", def.GitHub.Token)
	v.SetDefault("github.base_url", def.GitHub.BaseURL)
	v.SetDefault("github.max_issues", def.GitHub.MaxIssues)
	v.SetDefault("github.beginner_only", def.GitHub.BeginnerOnly)
	v.SetDefault("github.requests_per_second", def.GitHub.RequestsPerSecond)

	v.SetDefault("llm.model", def.LLM.Model)
	v.SetDefault("llm.fast_model", def.LLM.FastModel)
	v.SetDefault("llm.powerful_model", def.LLM.PowerfulModel)
	v.SetDefault("llm.temperature", def.LLM.Temperature)
	v.SetDefault("llm.max_tokens", def.LLM.MaxTokens)
	v.SetDefault("llm.max_concurrent", def.LLM.MaxConcurrent)
	v.SetDefault("llm.max_retries", def.LLM.MaxRetries)
	v.SetDefault("llm.timeout", def.LLM.Timeout)

	v.SetDefault("scoring.profile", def.Scoring.Profile)
	v.SetDefault("scoring.weights_file", def.Scoring.WeightsFile)
	v.SetDefault("scoring.top_k", def.Scoring.TopK)

	v.SetDefault("cache.dir", def.Cache.Dir)
	v.SetDefault("cache.max_age", def.Cache.MaxAge)
	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("log.level", def.Log.Level)
}

// mergeConfigFile merges the YAML file at path. A missing file is only an
// error when the path was given explicitly.
func mergeConfigFile(v *viper.Viper, path string, explicit bool) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config: %s is a directory", path)
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("config: merge %s: %w", path, err)
	}
	return nil
}

// UserConfigPath returns $XDG_CONFIG_HOME/issuescout/config.yaml.
func UserConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// Validate rejects settings that would make a run meaningless.
func Validate(c Config) error {
	switch {
	case c.GitHub.MaxIssues <= 0:
		return fmt.Errorf("config: github.max_issues must be > 0, got %d", c.GitHub.MaxIssues)
	case c.GitHub.RequestsPerSecond <= 0:
		return fmt.Errorf("config: github.requests_per_second must be > 0, got %g", c.GitHub.RequestsPerSecond)
	case c.Scoring.TopK <= 0:
		return fmt.Errorf("config: scoring.top_k must be > 0, got %d", c.Scoring.TopK)
	case c.LLM.MaxConcurrent < 0:
		return fmt.Errorf("config: llm.max_concurrent must be >= 0, got %d", c.LLM.MaxConcurrent)
	case c.LLM.MaxRetries < 0:
		return fmt.Errorf("config: llm.max_retries must be >= 0, got %d", c.LLM.MaxRetries)
	case c.LLM.Temperature < 0 || c.LLM.Temperature > 2:
		return fmt.Errorf("config: llm.temperature must be within 0..2, got %g", c.LLM.Temperature)
	}
	return nil
}
