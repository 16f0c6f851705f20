// Package anthropic implements a session backend for Claude models.
package anthropic

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/becomeliminal/chat-go-sdk/core"
	"github.com/becomeliminal/chat-go-sdk/session"
)

// Provider is the provider identifier for Claude models.
const Provider = "anthropic"

// DefaultMaxTokens is sent when the session sets no limit; the Messages API
// requires one.
const DefaultMaxTokens = 1024

// Models lists the Claude models registered by Register.
var Models = []string{
	"claude-3-sonnet-20240229",
	"claude-3-5-haiku-latest",
	"claude-3-7-sonnet-latest",
	"claude-sonnet-4-20250514",
	"claude-opus-4-20250514",
}

// Backend calls the Anthropic Messages API.
type Backend struct {
	client anthropic.Client
	model  string
}

// Ensure Backend implements session.Backend.
var _ session.Backend = (*Backend)(nil)

// New creates a backend for model. Extra request options are passed to the
// SDK client (base URL, retries, HTTP client).
func New(apiKey, model string, opts ...option.RequestOption) (*Backend, error) {
	if apiKey == "" {
		return nil, core.MissingCredentialError(Provider)
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Backend{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// Register adds the Claude models to r.
func Register(r *session.Registry) {
	for _, model := range Models {
		r.Register(Provider, model, func(apiKey, model string) (session.Backend, error) {
			return New(apiKey, model)
		})
	}
}

// Generate sends the conversation and returns the full reply.
func (b *Backend) Generate(ctx context.Context, req *session.Request) (*core.Response, error) {
	resp, err := b.client.Messages.New(ctx, b.params(req))
	if err != nil {
		return nil, b.normalize(err)
	}

	tokens := int(resp.Usage.InputTokens + resp.Usage.OutputTokens)
	return &core.Response{
		Content:    textOf(resp),
		TokensUsed: core.Tokens(tokens),
		Provider:   Provider,
		Raw:        resp,
	}, nil
}

// Stream yields text deltas as they arrive.
func (b *Backend) Stream(ctx context.Context, req *session.Request) iter.Seq2[*core.Response, error] {
	return func(yield func(*core.Response, error) bool) {
		stream := b.client.Messages.NewStreaming(ctx, b.params(req))
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()

			switch evt := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch delta := evt.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if !yield(&core.Response{Content: delta.Text, Provider: Provider, Raw: event}, nil) {
						return
					}
				}
			case anthropic.MessageStopEvent:
				// Stream complete
			}
		}

		if err := stream.Err(); err != nil {
			yield(nil, b.normalize(err))
		}
	}
}

// params builds the Messages API request.
func (b *Backend) params(req *session.Request) anthropic.MessageNewParams {
	maxTokens := int64(DefaultMaxTokens)
	if req.MaxTokens != nil {
		maxTokens = int64(*req.MaxTokens)
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		block := anthropic.NewTextBlock(msg.Content)
		switch msg.Role {
		case core.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(block))
		case core.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if req.System != nil {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System.Content},
		}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	return params
}

// normalize maps SDK errors to the core error kinds.
func (b *Backend) normalize(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return core.NewProviderError(core.ErrQuotaExceeded, Provider, b.model, err)
		case http.StatusNotFound:
			return core.NewProviderError(core.ErrModelUnavailable, Provider, b.model, err)
		}
		return core.NewProviderError(core.ErrRequestFailed, Provider, b.model, err)
	}
	return core.NewProviderError(core.ClassifyMessage(err.Error()), Provider, b.model, err)
}

// textOf concatenates the text blocks of a reply.
func textOf(resp *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}
