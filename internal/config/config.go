// Package config loads the process-wide configuration for cmd/agentcore:
// the provider roster, rate limits, memory/graph tuning, tool credentials,
// and logging, via YAML plus environment-variable overrides plus a defaults
// pass.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nexus-assistant/core/internal/agentgraph"
	"github.com/nexus-assistant/core/internal/observability"
	"github.com/nexus-assistant/core/internal/semanticmemory"
	"github.com/nexus-assistant/core/internal/usage"
)

// Config is the root configuration document.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Providers      []ProviderEntry      `yaml:"providers"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Graph          GraphConfig          `yaml:"graph"`
	Tools          ToolsConfig          `yaml:"tools"`
	Logging        LoggingConfig        `yaml:"logging"`
	SemanticMemory SemanticMemoryConfig `yaml:"semantic_memory"`
}

// ServerConfig configures the transport the core is served behind.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig selects and configures the Repository backing store.
// Driver is one of "memstore" (default, non-durable), "sqlite", or
// "postgres"; the latter two name the driver cmd/agentcore should dial with
// but, per DESIGN.md's C2 entry, no concrete SQL-backed Repository ships
// yet, so selecting them is a configuration error until one is added.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ProviderEntry is one entry in the provider roster, mapping onto both a
// models.ProviderConfig (priority/availability/rate limit) and the
// credentials cmd/agentcore needs to construct the matching
// internal/providers/adapters client.
type ProviderEntry struct {
	Name                 string  `yaml:"name"`
	Family               string  `yaml:"family"` // anthropic, openai, google, bedrock, ollama, venice
	Model                string  `yaml:"model"`
	APIKey               string  `yaml:"api_key"`
	Endpoint             string  `yaml:"endpoint"`
	Region               string  `yaml:"region"` // bedrock
	MaxRequestsPerMinute int     `yaml:"max_requests_per_minute"`
	MaxTokens            int     `yaml:"max_tokens"`
	Temperature          float64 `yaml:"temperature"`
	Priority             int     `yaml:"priority"`
	Enabled              *bool   `yaml:"enabled"`
	CostInputPerMToken   float64 `yaml:"cost_input_per_m_tokens"`
	CostOutputPerMToken  float64 `yaml:"cost_output_per_m_tokens"`
}

// IsEnabled reports whether the entry should be registered, defaulting to
// true when unset.
func (p ProviderEntry) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// Cost converts the entry's per-million-token pricing into a usage.Cost, for
// use with a usage.Tracker. Entries that leave pricing unset estimate to $0.
func (p ProviderEntry) Cost() usage.Cost {
	return usage.Cost{Input: p.CostInputPerMToken, Output: p.CostOutputPerMToken}
}

// RateLimitConfig is the fallback admission-control window applied to a
// ProviderEntry that doesn't set its own MaxRequestsPerMinute.
type RateLimitConfig struct {
	DefaultRequestsPerMinute int           `yaml:"default_requests_per_minute"`
	Window                   time.Duration `yaml:"window"`
}

// GraphConfig tunes the agent graph (C8); it mirrors agentgraph.Config
// field-for-field so Load can build one directly from the parsed document.
type GraphConfig struct {
	RecursionCap       int           `yaml:"recursion_cap"`
	RecallWindow       int           `yaml:"recall_window"`
	LLMTimeout         time.Duration `yaml:"llm_timeout"`
	ToolTimeout        time.Duration `yaml:"tool_timeout"`
	LanguageConfidence float64       `yaml:"language_confidence"`
	SystemModel        string        `yaml:"system_model"`
	MaxTokens          int           `yaml:"max_tokens"`
}

// ToAgentGraphConfig converts to the agentgraph package's own Config type.
func (g GraphConfig) ToAgentGraphConfig() agentgraph.Config {
	return agentgraph.Config{
		RecursionCap:       g.RecursionCap,
		RecallWindow:       g.RecallWindow,
		LLMTimeout:         g.LLMTimeout,
		ToolTimeout:        g.ToolTimeout,
		LanguageConfidence: g.LanguageConfidence,
		SystemModel:        g.SystemModel,
		MaxTokens:          g.MaxTokens,
	}
}

// ToolsConfig carries the credentials the built-in tools need (currently
// just web_search; life_event, recall_last_conversation, clarify_communication,
// and skill_evaluator are all Repository/memory-backed and need no
// credentials of their own).
type ToolsConfig struct {
	WebSearchAPIKey  string `yaml:"web_search_api_key"`
	WebSearchBaseURL string `yaml:"web_search_base_url"`
}

// LoggingConfig mirrors observability.LogConfig's YAML-facing fields.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// ToLogConfig converts to observability.LogConfig. Output is left nil so
// NewLogger applies its own default (os.Stdout).
func (l LoggingConfig) ToLogConfig() observability.LogConfig {
	return observability.LogConfig{
		Level:     l.Level,
		Format:    l.Format,
		AddSource: l.AddSource,
	}
}

// SemanticMemoryConfig configures the optional semantic_recall tool. Disabled
// by default: NewManager(nil config) and a zero-value config both leave
// semantic memory off, so agentcore runs with no vector backend to stand up.
type SemanticMemoryConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Backend            string `yaml:"backend"` // sqlite-vec, pgvector
	Dimension          int    `yaml:"dimension"`
	SQLiteVecPath      string `yaml:"sqlite_vec_path"`
	PgvectorDSN        string `yaml:"pgvector_dsn"`
	EmbeddingsProvider string `yaml:"embeddings_provider"` // openai, ollama
	EmbeddingsAPIKey   string `yaml:"embeddings_api_key"`
	EmbeddingsBaseURL  string `yaml:"embeddings_base_url"`
	EmbeddingsModel    string `yaml:"embeddings_model"`
	OllamaURL          string `yaml:"ollama_url"`
}

// ToSemanticMemoryConfig converts to the semanticmemory package's own Config
// type, suitable for semanticmemory.NewManager.
func (s SemanticMemoryConfig) ToSemanticMemoryConfig() *semanticmemory.Config {
	return &semanticmemory.Config{
		Enabled:   s.Enabled,
		Backend:   s.Backend,
		Dimension: s.Dimension,
		SQLiteVec: semanticmemory.SQLiteVecConfig{Path: s.SQLiteVecPath},
		Pgvector:  semanticmemory.PgvectorConfig{DSN: s.PgvectorDSN},
		Embeddings: semanticmemory.EmbeddingsConfig{
			Provider:  s.EmbeddingsProvider,
			APIKey:    s.EmbeddingsAPIKey,
			BaseURL:   s.EmbeddingsBaseURL,
			Model:     s.EmbeddingsModel,
			OllamaURL: s.OllamaURL,
		},
	}
}

// Load reads path, expands ${VAR} environment references, applies env-var
// overrides, fills defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("config: expected a single YAML document")
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "memstore"
	}

	if cfg.RateLimit.DefaultRequestsPerMinute == 0 {
		cfg.RateLimit.DefaultRequestsPerMinute = 60
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Minute
	}
	for i := range cfg.Providers {
		if cfg.Providers[i].MaxRequestsPerMinute == 0 {
			cfg.Providers[i].MaxRequestsPerMinute = cfg.RateLimit.DefaultRequestsPerMinute
		}
		if cfg.Providers[i].MaxTokens == 0 {
			cfg.Providers[i].MaxTokens = 4096
		}
	}

	graphDefaults := agentgraph.NewConfig()
	if cfg.Graph.RecursionCap == 0 {
		cfg.Graph.RecursionCap = graphDefaults.RecursionCap
	}
	if cfg.Graph.RecallWindow == 0 {
		cfg.Graph.RecallWindow = graphDefaults.RecallWindow
	}
	if cfg.Graph.LLMTimeout == 0 {
		cfg.Graph.LLMTimeout = graphDefaults.LLMTimeout
	}
	if cfg.Graph.ToolTimeout == 0 {
		cfg.Graph.ToolTimeout = graphDefaults.ToolTimeout
	}
	if cfg.Graph.LanguageConfidence == 0 {
		cfg.Graph.LanguageConfidence = graphDefaults.LanguageConfidence
	}
	if cfg.Graph.MaxTokens == 0 {
		cfg.Graph.MaxTokens = graphDefaults.MaxTokens
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	switch cfg.Database.Driver {
	case "memstore", "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown database.driver %q", cfg.Database.Driver)
	}
	if cfg.Database.Driver != "memstore" && cfg.Database.DSN == "" {
		return fmt.Errorf("config: database.dsn is required for driver %q", cfg.Database.Driver)
	}
	for _, p := range cfg.Providers {
		if p.Name == "" {
			return fmt.Errorf("config: a providers[] entry is missing name")
		}
		switch p.Family {
		case "anthropic", "openai", "google", "bedrock", "ollama", "venice":
		default:
			return fmt.Errorf("config: provider %q has unknown family %q", p.Name, p.Family)
		}
	}
	return nil
}

// applyEnvOverrides lets deployment secrets (API keys especially) be
// injected without editing the YAML file on disk.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("AGENTCORE_HOST")); v != "" {
		cfg.Server.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("AGENTCORE_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_DSN")); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("WEB_SEARCH_API_KEY")); v != "" {
		cfg.Tools.WebSearchAPIKey = v
	}

	// Per-provider API keys: AGENTCORE_PROVIDER_<NAME>_API_KEY, name
	// upper-cased with non-alphanumeric runs collapsed to underscores.
	for i := range cfg.Providers {
		key := "AGENTCORE_PROVIDER_" + envSafe(cfg.Providers[i].Name) + "_API_KEY"
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			cfg.Providers[i].APIKey = v
		}
	}
}

func envSafe(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
