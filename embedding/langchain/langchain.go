// Package langchain adapts langchaingo embedding clients (OpenAI, Gemini,
// Mistral) to embedding.Embedder.
package langchain

import (
	"context"
	"slices"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/mistral"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/becomeliminal/chat-go-sdk/core"
	"github.com/becomeliminal/chat-go-sdk/embedding"
)

// Default embedding models.
const (
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultGeminiModel = "text-embedding-004"
	MistralModel       = "mistral-embed"
)

// Embedder embeds texts through a langchaingo EmbedderClient.
type Embedder struct {
	provider string
	model    string
	impl     *embeddings.EmbedderImpl
}

// Ensure Embedder implements embedding.Embedder.
var _ embedding.Embedder = (*Embedder)(nil)

// New wraps any langchaingo embedding client.
func New(provider, model string, client embeddings.EmbedderClient, opts ...embeddings.Option) (*Embedder, error) {
	impl, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, core.NewProviderError(core.ErrRequestFailed, provider, model, err)
	}
	return &Embedder{provider: provider, model: model, impl: impl}, nil
}

// NewOpenAI creates an OpenAI embedder. model and baseURL may be empty.
func NewOpenAI(apiKey, model, baseURL string) (*Embedder, error) {
	if apiKey == "" {
		return nil, core.MissingCredentialError("openai")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, core.NewProviderError(core.ErrRequestFailed, "openai", model, err)
	}
	return New("openai", model, llm)
}

// NewGemini creates a Google embedder. model may be empty.
func NewGemini(ctx context.Context, apiKey, model string) (*Embedder, error) {
	if apiKey == "" {
		return nil, core.MissingCredentialError("gemini")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultEmbeddingModel(model),
	)
	if err != nil {
		return nil, core.NewProviderError(core.ErrRequestFailed, "gemini", model, err)
	}
	return New("gemini", model, llm)
}

// NewMistral creates a Mistral embedder; the model is always mistral-embed.
func NewMistral(apiKey string) (*Embedder, error) {
	if apiKey == "" {
		return nil, core.MissingCredentialError("mistral")
	}
	llm, err := mistral.New(mistral.WithAPIKey(apiKey))
	if err != nil {
		return nil, core.NewProviderError(core.ErrRequestFailed, "mistral", MistralModel, err)
	}
	return New("mistral", MistralModel, llm)
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return e.model
}

// Embed implements embedding.Embedder.
func (e *Embedder) Embed(ctx context.Context, texts ...string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	// EmbedDocuments rewrites its argument when stripping newlines.
	vectors, err := e.impl.EmbedDocuments(ctx, slices.Clone(texts))
	if err != nil {
		return nil, core.NewProviderError(core.ClassifyMessage(err.Error()), e.provider, e.model, err)
	}
	if err := embedding.CheckCount(texts, vectors); err != nil {
		return nil, core.NewProviderError(core.ErrRequestFailed, e.provider, e.model, err)
	}
	return vectors, nil
}
