// Package config holds all sigil configuration, loaded from
// .sigil/config.yaml with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"sigil/internal/embedding"
)

// Config holds all sigil configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Knowledge store
	Store StoreConfig `yaml:"store"`

	// Embedding engine for the retrieval index
	Embedding embedding.Config `yaml:"embedding"`

	// Model invoker
	Model ModelConfig `yaml:"model"`

	// Context assembly
	Context ContextConfig `yaml:"context"`

	// Agency loop
	Agency AgencyConfig `yaml:"agency"`

	// External symbol store synchronization
	Sync SyncConfig `yaml:"sync"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig configures the SQLite knowledge store and its catalogs.
type StoreConfig struct {
	DatabasePath  string `yaml:"database_path"`
	SymbolCatalog string `yaml:"symbol_catalog"`
	AgentCatalog  string `yaml:"agent_catalog"`
	KitCatalog    string `yaml:"kit_catalog"`

	// WatchCatalogs enables hot reload of agent/kit catalogs on file change.
	WatchCatalogs bool `yaml:"watch_catalogs"`
}

// ModelConfig configures the language model invoker.
type ModelConfig struct {
	Provider string `yaml:"provider"` // local, genai
	Endpoint string `yaml:"endpoint"` // local generate endpoint
	Model    string `yaml:"model"`

	GenAIAPIKey string `yaml:"genai_api_key"`

	MaxOutputTokens int    `yaml:"max_output_tokens"`
	Timeout         string `yaml:"timeout"`
}

// ContextConfig configures the context assembler.
type ContextConfig struct {
	MaxTokens     int `yaml:"max_tokens"`
	SystemReserve int `yaml:"system_reserve"`

	// Encoder: "word" or "heuristic"
	Encoder string `yaml:"encoder"`
}

// AgencyConfig configures the self-directed agency loop.
type AgencyConfig struct {
	SessionID    string `yaml:"session_id"`
	SymbolLimit  int    `yaml:"symbol_limit"`
	LoopInterval string `yaml:"loop_interval"`
	PromptDir    string `yaml:"prompt_dir"`
	SeedQuery    string `yaml:"seed_query"`
}

// SyncConfig configures the external symbol store client.
type SyncConfig struct {
	BaseURL   string `yaml:"base_url"`
	Timeout   string `yaml:"timeout"`
	PageLimit int    `yaml:"page_limit"`
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "sigil",
		Version: "0.3.0",

		Store: StoreConfig{
			DatabasePath:  "data/sigil.db",
			SymbolCatalog: "data/symbol_catalog.json",
			AgentCatalog:  "data/agents.json",
			KitCatalog:    "data/kits.json",
		},

		Embedding: embedding.DefaultConfig(),

		Model: ModelConfig{
			Provider:        "local",
			Endpoint:        "http://localhost:11434/api/generate",
			Model:           "llama3",
			MaxOutputTokens: 2048,
			Timeout:         "300s",
		},

		Context: ContextConfig{
			MaxTokens:     8192,
			SystemReserve: 1000,
			Encoder:       "word",
		},

		Agency: AgencyConfig{
			SessionID:    "self",
			SymbolLimit:  32,
			LoopInterval: "300s",
			PromptDir:    "data/prompts",
			SeedQuery:    "active goals and open threads",
		},

		Sync: SyncConfig{
			Timeout:   "10s",
			PageLimit: 20,
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults for
// any unset field, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromWorkspace loads .sigil/config.yaml relative to the workspace root.
func LoadFromWorkspace(workspace string) (*Config, error) {
	return Load(filepath.Join(workspace, ".sigil", "config.yaml"))
}

// Save writes the configuration back to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
