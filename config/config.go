// Package config loads the JSON configuration file and fills in defaults
// and environment fallbacks, so a bare checkout runs with nothing but an
// API key in the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"local_mythmaker/backend"
	"local_mythmaker/orchestrator"
)

// Backend selects and authenticates the generative provider.
type Backend struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
}

// Orchestration overrides the loop/compaction knobs. Pointers so an
// explicit zero (max_iterations: 0) is distinguishable from unset.
type Orchestration struct {
	MaxIterations      *int `json:"max_iterations,omitempty"`
	AcceptThreshold    *int `json:"accept_threshold,omitempty"`
	ContextBudget      *int `json:"context_budget,omitempty"`
	ToolRoundTrips     *int `json:"tool_round_trips,omitempty"`
	PerCallTimeoutSecs *int `json:"per_call_timeout_secs,omitempty"`
}

type Config struct {
	Backend       Backend       `json:"backend"`
	Orchestration Orchestration `json:"orchestration"`
	ServerAddr    string        `json:"server_addr,omitempty"`
}

// Load reads JSON config from disk. A missing file is not an error: every
// field has a default and API keys fall back to the environment.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	case err != nil:
		return Config{}, err
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if cfg.Backend.Provider == "" {
		cfg.Backend.Provider = "gemini"
	}
	if cfg.Backend.APIKey == "" {
		cfg.Backend.APIKey = keyFromEnv(cfg.Backend.Provider)
	}
	return cfg, nil
}

func keyFromEnv(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "gemini":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	default:
		return ""
	}
}

// Settings maps the backend section onto the provider-independent
// connection settings.
func (c Config) Settings() *backend.Settings {
	return &backend.Settings{
		Provider: c.Backend.Provider,
		Model:    c.Backend.Model,
		APIKey:   c.Backend.APIKey,
		BaseURL:  c.Backend.BaseURL,
	}
}

// Options starts from the orchestrator defaults and applies any file
// overrides. Validation happens where the options are consumed.
func (c Config) Options() orchestrator.Options {
	opts := orchestrator.DefaultOptions()
	if v := c.Orchestration.MaxIterations; v != nil {
		opts.MaxIterations = *v
	}
	if v := c.Orchestration.AcceptThreshold; v != nil {
		opts.AcceptThreshold = *v
	}
	if v := c.Orchestration.ContextBudget; v != nil {
		opts.ContextBudget = *v
	}
	if v := c.Orchestration.ToolRoundTrips; v != nil {
		opts.ToolRoundTrips = *v
	}
	if v := c.Orchestration.PerCallTimeoutSecs; v != nil {
		opts.PerCallTimeout = time.Duration(*v) * time.Second
	}
	return opts
}
