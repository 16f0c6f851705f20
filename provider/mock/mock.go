// Package mock provides a deterministic backend for tests and offline use.
package mock

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/becomeliminal/chat-go-sdk/core"
	"github.com/becomeliminal/chat-go-sdk/session"
)

const (
	// Provider is the provider identifier of the mock backend.
	Provider = "mock"

	// Model is the model registered by Register.
	Model = "mock-model"

	replyPrefix = "This is a mock response to: "
	mockTokens  = 10
)

// DefaultChunks is the fixed stream produced when no chunks are configured.
var DefaultChunks = []string{"This ", "is ", "a ", "mock ", "streamed ", "response."}

// Backend is a mock session.Backend.
type Backend struct {
	reply  func(prompt string) string
	chunks []string
	delay  time.Duration
	err    error

	mu       sync.Mutex
	requests []*session.Request
}

// Ensure Backend implements session.Backend.
var _ session.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithReply makes Generate return text regardless of the prompt.
func WithReply(text string) Option {
	return func(b *Backend) {
		b.reply = func(string) string { return text }
	}
}

// WithReplyFunc makes Generate return fn(last user message).
func WithReplyFunc(fn func(prompt string) string) Option {
	return func(b *Backend) { b.reply = fn }
}

// WithChunks sets the chunks produced by Stream.
func WithChunks(chunks ...string) Option {
	return func(b *Backend) { b.chunks = chunks }
}

// WithDelay pauses before each stream chunk.
func WithDelay(d time.Duration) Option {
	return func(b *Backend) { b.delay = d }
}

// WithError makes every call fail with err.
func WithError(err error) Option {
	return func(b *Backend) { b.err = err }
}

// New creates a mock backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		reply:  func(prompt string) string { return replyPrefix + prompt },
		chunks: DefaultChunks,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register adds the mock model to r. The mock backend needs no API key.
func Register(r *session.Registry) {
	r.Register(Provider, Model, func(_, _ string) (session.Backend, error) {
		return New(), nil
	})
}

// Requests returns the requests received so far.
func (b *Backend) Requests() []*session.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*session.Request(nil), b.requests...)
}

// Generate returns the configured reply.
func (b *Backend) Generate(ctx context.Context, req *session.Request) (*core.Response, error) {
	b.record(req)
	if b.err != nil {
		return nil, b.err
	}
	if err := ctx.Err(); err != nil {
		return nil, core.NewProviderError(core.ErrRequestFailed, Provider, req.Model, err)
	}
	return &core.Response{
		Content:    b.reply(req.LastUserMessage()),
		TokensUsed: core.Tokens(mockTokens),
		Provider:   Provider,
	}, nil
}

// Stream yields the configured chunks in order.
func (b *Backend) Stream(ctx context.Context, req *session.Request) iter.Seq2[*core.Response, error] {
	return func(yield func(*core.Response, error) bool) {
		b.record(req)
		if b.err != nil {
			yield(nil, b.err)
			return
		}

		for _, chunk := range b.chunks {
			if b.delay > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(b.delay):
				}
			}
			if err := ctx.Err(); err != nil {
				yield(nil, core.NewProviderError(core.ErrRequestFailed, Provider, req.Model, err))
				return
			}
			if !yield(&core.Response{Content: chunk, Provider: Provider, Raw: chunk}, nil) {
				return
			}
		}
	}
}

func (b *Backend) record(req *session.Request) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()
}
