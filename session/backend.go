// Package session provides the provider-agnostic conversational session.
//
// A Session owns a history, a system prompt, sampling settings and an
// optional reply filter, and delegates generation to a Backend. Backends
// are registered per (provider, model) in a Registry and selected when the
// session is created.
//
// Turn semantics:
//   - Ask and AskAsync commit the user message and the (filtered) reply
//     together once the backend call succeeds. On error nothing is recorded.
//   - AskStream commits only when the stream is drained to the end. Breaking
//     out of the range loop, cancelling ctx or a backend error leaves the
//     history and the long-term log untouched.
//
// Turns on one Session run one at a time in call order.
package session

import (
	"context"
	"iter"

	"github.com/becomeliminal/chat-go-sdk/core"
)

// Request is everything a backend needs to produce one reply.
type Request struct {
	Model string

	// Messages is the history followed by the new user message.
	Messages []core.Message

	// System is applied by the backend in whatever way its API expects.
	// It never appears in Messages.
	System *core.Message

	Temperature *float64
	MaxTokens   *int
}

// LastUserMessage returns the content of the most recent user message.
func (r *Request) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == core.RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// Backend is one provider's generation API.
//
// Errors returned or yielded by a Backend must match one of
// core.ErrQuotaExceeded, core.ErrModelUnavailable or core.ErrRequestFailed.
type Backend interface {
	// Generate performs one blocking call and returns the complete reply.
	Generate(ctx context.Context, req *Request) (*core.Response, error)

	// Stream returns a lazy, finite, single-pass sequence of reply chunks.
	// The call starts when the sequence is ranged over. If the consumer
	// stops early the backend must release its resources and return.
	Stream(ctx context.Context, req *Request) iter.Seq2[*core.Response, error]
}

// Factory builds a Backend for a model. apiKey is empty when no credential
// is configured; factories that need one return an error wrapping
// core.ErrConfiguration.
type Factory func(apiKey, model string) (Backend, error)

// Credentials resolves API keys by provider identifier.
type Credentials interface {
	APIKey(provider string) (string, bool)
}

// StaticCredentials is a fixed provider to key mapping.
type StaticCredentials map[string]string

// APIKey implements Credentials.
func (c StaticCredentials) APIKey(provider string) (string, bool) {
	key, ok := c[provider]
	return key, ok && key != ""
}
