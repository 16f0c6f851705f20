// Package ollama embeds texts with a local Ollama server through chromem-go's
// embedding functions.
package ollama

import (
	"context"

	"github.com/philippgille/chromem-go"

	"github.com/becomeliminal/chat-go-sdk/core"
	"github.com/becomeliminal/chat-go-sdk/embedding"
)

// DefaultModel is a small general-purpose embedding model.
const DefaultModel = "nomic-embed-text"

// Embedder calls a chromem.EmbeddingFunc once per text. Vectors come back
// normalized.
type Embedder struct {
	provider string
	model    string
	fn       chromem.EmbeddingFunc
}

// Ensure Embedder implements embedding.Embedder.
var _ embedding.Embedder = (*Embedder)(nil)

// New creates an Ollama embedder. An empty baseURL means
// http://localhost:11434/api.
func New(model, baseURL string) *Embedder {
	if model == "" {
		model = DefaultModel
	}
	return FromFunc("ollama", model, chromem.NewEmbeddingFuncOllama(model, baseURL))
}

// FromFunc wraps any chromem embedding function, such as
// chromem.NewEmbeddingFuncOpenAICompat.
func FromFunc(provider, model string, fn chromem.EmbeddingFunc) *Embedder {
	return &Embedder{provider: provider, model: model, fn: fn}
}

// Embed implements embedding.Embedder.
func (e *Embedder) Embed(ctx context.Context, texts ...string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, core.NewProviderError(core.ErrRequestFailed, e.provider, e.model, err)
		}
		vec, err := e.fn(ctx, text)
		if err != nil {
			return nil, core.NewProviderError(core.ClassifyMessage(err.Error()), e.provider, e.model, err)
		}
		out = append(out, vec)
	}
	return out, nil
}
