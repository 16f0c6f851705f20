// Package langchain implements session backends on top of langchaingo
// models: OpenAI, Gemini and Mistral.
package langchain

import (
	"context"
	"errors"
	"iter"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/becomeliminal/chat-go-sdk/core"
	"github.com/becomeliminal/chat-go-sdk/session"
)

// errStopped is returned from the streaming callback when the consumer
// stops ranging.
var errStopped = errors.New("stream stopped by consumer")

// Backend adapts an llms.Model to session.Backend.
type Backend struct {
	provider string
	model    string
	llm      llms.Model
}

// Ensure Backend implements session.Backend.
var _ session.Backend = (*Backend)(nil)

// NewBackend wraps an already constructed langchaingo model.
func NewBackend(provider, model string, llm llms.Model) *Backend {
	return &Backend{provider: provider, model: model, llm: llm}
}

// Generate sends the conversation and returns the full reply.
func (b *Backend) Generate(ctx context.Context, req *session.Request) (*core.Response, error) {
	resp, err := b.llm.GenerateContent(ctx, messagesOf(req), b.callOptions(req)...)
	if err != nil {
		return nil, b.normalize(err)
	}
	if len(resp.Choices) == 0 {
		return nil, core.NewProviderError(core.ErrRequestFailed, b.provider, b.model, errors.New("empty response"))
	}

	choice := resp.Choices[0]
	out := &core.Response{
		Content:  choice.Content,
		Provider: b.provider,
		Raw:      resp,
	}
	if n, ok := totalTokens(choice.GenerationInfo); ok {
		out.TokensUsed = core.Tokens(n)
	}
	return out, nil
}

// Stream yields chunks from the model's streaming callback. The callback
// runs on the goroutine that ranges over the sequence.
func (b *Backend) Stream(ctx context.Context, req *session.Request) iter.Seq2[*core.Response, error] {
	return func(yield func(*core.Response, error) bool) {
		stopped := false
		onChunk := func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			if !yield(&core.Response{Content: string(chunk), Provider: b.provider, Raw: chunk}, nil) {
				stopped = true
				return errStopped
			}
			return nil
		}

		opts := append(b.callOptions(req), llms.WithStreamingFunc(onChunk))
		_, err := b.llm.GenerateContent(ctx, messagesOf(req), opts...)
		if stopped {
			return
		}
		if err != nil {
			yield(nil, b.normalize(err))
		}
	}
}

func (b *Backend) callOptions(req *session.Request) []llms.CallOption {
	opts := []llms.CallOption{llms.WithModel(req.Model)}
	if req.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*req.Temperature))
	}
	if req.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*req.MaxTokens))
	}
	return opts
}

// messagesOf converts the request to langchaingo message parts. The system
// prompt goes first.
func messagesOf(req *session.Request) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.System != nil {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System.Content))
	}
	for _, msg := range req.Messages {
		messages = append(messages, llms.TextParts(messageType(msg.Role), msg.Content))
	}
	return messages
}

func messageType(role core.Role) llms.ChatMessageType {
	switch role {
	case core.RoleAssistant:
		return llms.ChatMessageTypeAI
	case core.RoleSystem:
		return llms.ChatMessageTypeSystem
	default:
		return llms.ChatMessageTypeHuman
	}
}

// normalize maps provider error messages to the core error kinds.
func (b *Backend) normalize(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return core.NewProviderError(core.ErrRequestFailed, b.provider, b.model, err)
	}
	return core.NewProviderError(core.ClassifyMessage(err.Error()), b.provider, b.model, err)
}

// totalTokens reads the total token count from generation info. Providers
// use different keys and integer types.
func totalTokens(info map[string]any) (int, bool) {
	for key, v := range info {
		switch strings.ToLower(key) {
		case "totaltokens", "total_tokens", "totaltokencount":
		default:
			continue
		}
		switch n := v.(type) {
		case int:
			return n, true
		case int32:
			return int(n), true
		case int64:
			return int(n), true
		case float64:
			return int(n), true
		}
	}
	return 0, false
}
