package langchain

import (
	"context"

	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/mistral"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/becomeliminal/chat-go-sdk/core"
	"github.com/becomeliminal/chat-go-sdk/session"
)

// Provider identifiers.
const (
	OpenAI  = "openai"
	Gemini  = "gemini"
	Mistral = "mistral"
)

// Models registered per provider.
var (
	OpenAIModels  = []string{"gpt-4o", "gpt-4o-mini", "gpt-3.5-turbo"}
	GeminiModels  = []string{"gemini-1.5-pro-latest", "gemini-1.5-flash-latest", "gemini-2.0-flash"}
	MistralModels = []string{"mistral-tiny", "mistral-small", "mistral-medium", "mistral-large-latest"}
)

// NewOpenAI creates an OpenAI backend. baseURL may be empty.
func NewOpenAI(apiKey, model, baseURL string) (*Backend, error) {
	if apiKey == "" {
		return nil, core.MissingCredentialError(OpenAI)
	}
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, core.NewProviderError(core.ErrRequestFailed, OpenAI, model, err)
	}
	return NewBackend(OpenAI, model, llm), nil
}

// NewGemini creates a Google Gemini backend.
func NewGemini(ctx context.Context, apiKey, model string) (*Backend, error) {
	if apiKey == "" {
		return nil, core.MissingCredentialError(Gemini)
	}
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, core.NewProviderError(core.ErrRequestFailed, Gemini, model, err)
	}
	return NewBackend(Gemini, model, llm), nil
}

// NewMistral creates a Mistral backend.
func NewMistral(apiKey, model string) (*Backend, error) {
	if apiKey == "" {
		return nil, core.MissingCredentialError(Mistral)
	}
	llm, err := mistral.New(
		mistral.WithAPIKey(apiKey),
		mistral.WithModel(model),
	)
	if err != nil {
		return nil, core.NewProviderError(core.ErrRequestFailed, Mistral, model, err)
	}
	return NewBackend(Mistral, model, llm), nil
}

// Register adds every OpenAI, Gemini and Mistral model to r.
func Register(r *session.Registry) {
	RegisterOpenAI(r, "")
	RegisterGemini(r)
	RegisterMistral(r)
}

// RegisterOpenAI adds the OpenAI models. A non-empty baseURL points them at
// an OpenAI-compatible endpoint.
func RegisterOpenAI(r *session.Registry, baseURL string) {
	for _, model := range OpenAIModels {
		r.Register(OpenAI, model, func(apiKey, model string) (session.Backend, error) {
			return NewOpenAI(apiKey, model, baseURL)
		})
	}
}

// RegisterGemini adds the Gemini models.
func RegisterGemini(r *session.Registry) {
	for _, model := range GeminiModels {
		r.Register(Gemini, model, func(apiKey, model string) (session.Backend, error) {
			return NewGemini(context.Background(), apiKey, model)
		})
	}
}

// RegisterMistral adds the Mistral models.
func RegisterMistral(r *session.Registry) {
	for _, model := range MistralModels {
		r.Register(Mistral, model, func(apiKey, model string) (session.Backend, error) {
			return NewMistral(apiKey, model)
		})
	}
}
