// Package config loads the YAML configuration shared by the CLI and the
// HTTP server, resolves API keys, and builds sessions, embedders, vector
// stores and RAG engines from it.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/becomeliminal/chat-go-sdk/core"
	"github.com/becomeliminal/chat-go-sdk/memory"
	"github.com/becomeliminal/chat-go-sdk/provider/mock"
	"github.com/becomeliminal/chat-go-sdk/rag"
)

// DefaultAddr is the server listen address when none is configured.
const DefaultAddr = ":8080"

// ModelConfig defines one named model.
type ModelConfig struct {
	Name         string   `json:"name" yaml:"name"`                             // e.g. "claude", "fast"
	Provider     string   `json:"provider" yaml:"provider"`                     // e.g. "anthropic", "openai", "mock"
	ModelName    string   `json:"model_name" yaml:"model_name"`                 // provider model id
	APIKey       string   `json:"api_key,omitempty" yaml:"api_key,omitempty"`   // literal key or env:VAR
	BaseURL      string   `json:"base_url,omitempty" yaml:"base_url,omitempty"` // custom endpoint
	MaxTokens    int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
}

// MemoryConfig controls conversation memory.
type MemoryConfig struct {
	Dir         string `json:"dir" yaml:"dir"`
	LongTerm    bool   `json:"long_term" yaml:"long_term"`
	RecentTurns int    `json:"recent_turns" yaml:"recent_turns"`
}

// EmbeddingConfig selects the embedder used for retrieval.
type EmbeddingConfig struct {
	Provider   string `json:"provider" yaml:"provider"` // mock, openai, gemini, mistral, ollama
	Model      string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey     string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Dimensions int    `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	CacheBytes int64  `json:"cache_bytes,omitempty" yaml:"cache_bytes,omitempty"` // 0 = default, <0 = no cache
}

// RAGConfig controls the retrieval engine and its vector store.
type RAGConfig struct {
	Template   string             `json:"template" yaml:"template"`
	Rules      []rag.TemplateRule `json:"rules,omitempty" yaml:"rules,omitempty"`
	TopK       int                `json:"top_k" yaml:"top_k"`
	StrictMode bool               `json:"strict_mode" yaml:"strict_mode"`
	Trace      bool               `json:"trace" yaml:"trace"`
	TextField  string             `json:"text_field" yaml:"text_field"`
	Store      string             `json:"store" yaml:"store"` // memory or chromem
	Collection string             `json:"collection,omitempty" yaml:"collection,omitempty"`
	Path       string             `json:"path,omitempty" yaml:"path,omitempty"`
	Indent     bool               `json:"indent" yaml:"indent"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// Config holds the whole configuration.
type Config struct {
	DefaultModel string            `json:"default_model" yaml:"default_model"`
	Models       []ModelConfig     `json:"models" yaml:"models"`
	APIKeys      map[string]string `json:"api_keys,omitempty" yaml:"api_keys,omitempty"` // provider -> key or env:VAR
	Memory       MemoryConfig      `json:"memory" yaml:"memory"`
	Embedding    EmbeddingConfig   `json:"embedding" yaml:"embedding"`
	RAG          RAGConfig         `json:"rag" yaml:"rag"`
	Server       ServerConfig      `json:"server" yaml:"server"`
}

// Default returns a configuration that runs entirely offline on the mock
// provider.
func Default() *Config {
	cfg := &Config{
		DefaultModel: mock.Provider,
		Models: []ModelConfig{
			{Name: mock.Provider, Provider: mock.Provider, ModelName: mock.Model},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Memory.Dir == "" {
		c.Memory.Dir = memory.DefaultDir
	}
	if c.Memory.RecentTurns == 0 {
		c.Memory.RecentTurns = memory.DefaultRecentTurns
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = EmbedMock
	}
	if c.RAG.Template == "" {
		c.RAG.Template = rag.TemplateAuto
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = rag.DefaultTopK
	}
	if c.RAG.TextField == "" {
		c.RAG.TextField = rag.DefaultTextField
	}
	if c.RAG.Store == "" {
		c.RAG.Store = StoreMemory
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.DefaultModel == "" && len(c.Models) > 0 {
		c.DefaultModel = c.Models[0].Name
	}
}

// Validate reports the first configuration problem found. Errors wrap
// core.ErrConfiguration.
func (c *Config) Validate() error {
	if len(c.Models) == 0 {
		return fmt.Errorf("%w: no models configured", core.ErrConfiguration)
	}
	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		switch {
		case m.Name == "":
			return fmt.Errorf("%w: models[%d]: name is required", core.ErrConfiguration, i)
		case m.Provider == "":
			return fmt.Errorf("%w: model %q: provider is required", core.ErrConfiguration, m.Name)
		case m.ModelName == "":
			return fmt.Errorf("%w: model %q: model_name is required", core.ErrConfiguration, m.Name)
		case seen[m.Name]:
			return fmt.Errorf("%w: model %q defined twice", core.ErrConfiguration, m.Name)
		}
		seen[m.Name] = true
	}
	if !seen[c.DefaultModel] {
		return fmt.Errorf("%w: default_model %q is not defined", core.ErrConfiguration, c.DefaultModel)
	}
	switch c.RAG.Store {
	case StoreMemory, StoreChromem:
	default:
		return fmt.Errorf("%w: unknown rag store %q", core.ErrConfiguration, c.RAG.Store)
	}
	if c.RAG.TopK < 0 {
		return fmt.Errorf("%w: rag top_k must not be negative", core.ErrConfiguration)
	}
	return nil
}

// Model returns the named model, or the default model when name is empty.
func (c *Config) Model(name string) (ModelConfig, error) {
	if name == "" {
		name = c.DefaultModel
	}
	for _, m := range c.Models {
		if m.Name == name {
			return m, nil
		}
	}
	return ModelConfig{}, fmt.Errorf("%w: model %q is not defined", core.ErrConfiguration, name)
}
