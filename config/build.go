package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/becomeliminal/chat-go-sdk/core"
	"github.com/becomeliminal/chat-go-sdk/embedding"
	embedlangchain "github.com/becomeliminal/chat-go-sdk/embedding/langchain"
	embedmock "github.com/becomeliminal/chat-go-sdk/embedding/mock"
	"github.com/becomeliminal/chat-go-sdk/embedding/ollama"
	"github.com/becomeliminal/chat-go-sdk/memory"
	"github.com/becomeliminal/chat-go-sdk/provider/anthropic"
	"github.com/becomeliminal/chat-go-sdk/provider/langchain"
	"github.com/becomeliminal/chat-go-sdk/provider/mock"
	"github.com/becomeliminal/chat-go-sdk/rag"
	"github.com/becomeliminal/chat-go-sdk/session"
	"github.com/becomeliminal/chat-go-sdk/vectorstore"
	"github.com/becomeliminal/chat-go-sdk/vectorstore/chromem"
)

// Embedding providers.
const (
	EmbedMock    = "mock"
	EmbedOpenAI  = "openai"
	EmbedGemini  = "gemini"
	EmbedMistral = "mistral"
	EmbedOllama  = "ollama"
)

// Vector store kinds.
const (
	StoreMemory  = "memory"
	StoreChromem = "chromem"
)

// BuildRegistry registers every built-in model plus any configured model
// that is not built in or that needs a custom endpoint.
func (c *Config) BuildRegistry() *session.Registry {
	r := session.NewRegistry()
	mock.Register(r)
	anthropic.Register(r)
	langchain.Register(r)

	for _, m := range c.Models {
		_, err := r.Lookup(m.Provider, m.ModelName)
		if err == nil && m.BaseURL == "" {
			continue
		}
		if factory := customFactory(m); factory != nil {
			r.Register(m.Provider, m.ModelName, factory)
		}
	}
	return r
}

func customFactory(m ModelConfig) session.Factory {
	baseURL := m.BaseURL
	switch m.Provider {
	case anthropic.Provider:
		return func(apiKey, model string) (session.Backend, error) {
			var opts []option.RequestOption
			if baseURL != "" {
				opts = append(opts, option.WithBaseURL(baseURL))
			}
			return anthropic.New(apiKey, model, opts...)
		}
	case langchain.OpenAI:
		return func(apiKey, model string) (session.Backend, error) {
			return langchain.NewOpenAI(apiKey, model, baseURL)
		}
	case langchain.Gemini:
		return func(apiKey, model string) (session.Backend, error) {
			return langchain.NewGemini(context.Background(), apiKey, model)
		}
	case langchain.Mistral:
		return func(apiKey, model string) (session.Backend, error) {
			return langchain.NewMistral(apiKey, model)
		}
	case mock.Provider:
		return func(apiKey, model string) (session.Backend, error) {
			return mock.New(), nil
		}
	}
	return nil
}

// NewSession builds a session for the named model (default when empty),
// applies its sampling settings and system prompt, and enables memory as
// configured. opts are applied after the configured memory manager.
func (c *Config) NewSession(r *session.Registry, name string, creds session.Credentials, opts ...session.Option) (*session.Session, error) {
	m, err := c.Model(name)
	if err != nil {
		return nil, err
	}
	if m.APIKey != "" {
		creds = overlay{provider: m.Provider, key: ResolveSecret(m.APIKey), base: creds}
	}

	opts = append([]session.Option{session.WithMemory(memory.New(c.Memory.Dir))}, opts...)
	s, err := r.New(m.Provider, m.ModelName, creds, opts...)
	if err != nil {
		return nil, err
	}
	if m.MaxTokens > 0 {
		s.MaxTokens(m.MaxTokens)
	}
	if m.Temperature != nil {
		s.Temperature(*m.Temperature)
	}
	if m.SystemPrompt != "" {
		s.SysPrompt(m.SystemPrompt)
	}
	if c.Memory.LongTerm {
		if err := s.EnableMemory(true, true, c.Memory.RecentTurns); err != nil {
			return nil, fmt.Errorf("enable memory: %w", err)
		}
	}
	return s, nil
}

// NewEmbedder builds the configured embedder, wrapped in a cache unless
// cache_bytes is negative. The returned function releases the cache.
func (c *Config) NewEmbedder(ctx context.Context, creds session.Credentials) (embedding.Embedder, func(), error) {
	ec := c.Embedding
	apiKey := ResolveSecret(ec.APIKey)
	if apiKey == "" && creds != nil {
		apiKey, _ = creds.APIKey(ec.Provider)
	}

	var (
		inner embedding.Embedder
		err   error
	)
	switch ec.Provider {
	case EmbedMock:
		var opts []embedmock.Option
		if ec.Dimensions > 0 {
			opts = append(opts, embedmock.WithDimensions(ec.Dimensions))
		}
		inner = embedmock.New(opts...)
	case EmbedOpenAI:
		inner, err = embedlangchain.NewOpenAI(apiKey, ec.Model, ec.BaseURL)
	case EmbedGemini:
		inner, err = embedlangchain.NewGemini(ctx, apiKey, ec.Model)
	case EmbedMistral:
		inner, err = embedlangchain.NewMistral(apiKey)
	case EmbedOllama:
		inner = ollama.New(ec.Model, ec.BaseURL)
	default:
		return nil, nil, fmt.Errorf("%w: unknown embedding provider %q", core.ErrConfiguration, ec.Provider)
	}
	if err != nil {
		return nil, nil, err
	}

	if ec.CacheBytes < 0 {
		return inner, func() {}, nil
	}
	cached, err := embedding.NewCached(inner, ec.Provider+"/"+ec.Model, ec.CacheBytes)
	if err != nil {
		return nil, nil, err
	}
	return cached, cached.Close, nil
}

// NewStore builds the configured vector store and loads rag.path when the
// file exists.
func (c *Config) NewStore(logger *log.Logger) (vectorstore.Store, error) {
	var store vectorstore.Store
	switch c.RAG.Store {
	case StoreMemory:
		store = vectorstore.NewMemoryStore(vectorstore.WithIndent(c.RAG.Indent))
	case StoreChromem:
		opts := []chromem.Option{chromem.WithIndent(c.RAG.Indent), chromem.WithLogger(logger)}
		if c.RAG.Collection != "" {
			opts = append(opts, chromem.WithCollection(c.RAG.Collection))
		}
		s, err := chromem.New(opts...)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("%w: unknown rag store %q", core.ErrConfiguration, c.RAG.Store)
	}

	if c.RAG.Path == "" {
		return store, nil
	}
	if _, err := os.Stat(c.RAG.Path); errors.Is(err, fs.ErrNotExist) {
		return store, nil
	}
	if err := store.Load(c.RAG.Path); err != nil {
		return nil, fmt.Errorf("load vector store: %w", err)
	}
	return store, nil
}

// NewEngine builds a RAG engine over llm with the configured settings.
func (c *Config) NewEngine(llm rag.Asker, embedder embedding.Embedder, store vectorstore.Store, logger *log.Logger) (*rag.Engine, error) {
	opts := []rag.Option{
		rag.WithTemplate(c.RAG.Template),
		rag.WithTopK(c.RAG.TopK),
		rag.WithStrictMode(c.RAG.StrictMode),
		rag.WithTrace(c.RAG.Trace),
		rag.WithTextField(c.RAG.TextField),
		rag.WithLogger(logger),
	}
	if len(c.RAG.Rules) > 0 {
		opts = append(opts, rag.WithTemplateRules(c.RAG.Rules))
	}
	return rag.New(llm, embedder, store, opts...)
}
