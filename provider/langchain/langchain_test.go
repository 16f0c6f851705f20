package langchain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/becomeliminal/chat-go-sdk/core"
	"github.com/becomeliminal/chat-go-sdk/provider/langchain"
	"github.com/becomeliminal/chat-go-sdk/session"
)

// fakeModel is an llms.Model that records what it was called with.
type fakeModel struct {
	chunks   []string
	err      error
	info     map[string]any
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.opts)
	}
	if f.err != nil {
		return nil, f.err
	}

	var full string
	for _, c := range f.chunks {
		if f.opts.StreamingFunc != nil {
			if err := f.opts.StreamingFunc(ctx, []byte(c)); err != nil {
				return nil, err
			}
		}
		full += c
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: full, GenerationInfo: f.info}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func request() *session.Request {
	sys := core.SystemMessage("sys")
	temp, maxTokens := 0.4, 99
	return &session.Request{
		Model:       "gpt-4o",
		Messages:    []core.Message{core.UserMessage("a"), core.AssistantMessage("b"), core.UserMessage("c")},
		System:      &sys,
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	}
}

func textOf(t *testing.T, mc llms.MessageContent) string {
	t.Helper()
	require.Len(t, mc.Parts, 1)
	part, ok := mc.Parts[0].(llms.TextContent)
	require.True(t, ok)
	return part.Text
}

func TestGenerate(t *testing.T) {
	fake := &fakeModel{chunks: []string{"hello ", "world"}, info: map[string]any{"TotalTokens": 21}}
	b := langchain.NewBackend(langchain.OpenAI, "gpt-4o", fake)

	resp, err := b.Generate(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "hello world", resp.Content)
	assert.Equal(t, langchain.OpenAI, resp.Provider)
	require.NotNil(t, resp.TokensUsed)
	assert.Equal(t, 21, *resp.TokensUsed)

	require.Len(t, fake.messages, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, fake.messages[0].Role)
	assert.Equal(t, "sys", textOf(t, fake.messages[0]))
	assert.Equal(t, llms.ChatMessageTypeHuman, fake.messages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, fake.messages[2].Role)
	assert.Equal(t, "c", textOf(t, fake.messages[3]))

	assert.Equal(t, "gpt-4o", fake.opts.Model)
	assert.Equal(t, 0.4, fake.opts.Temperature)
	assert.Equal(t, 99, fake.opts.MaxTokens)
}

func TestGenerateWithoutTokenInfo(t *testing.T) {
	b := langchain.NewBackend(langchain.Gemini, "gemini-2.0-flash", &fakeModel{chunks: []string{"ok"}})

	resp, err := b.Generate(context.Background(), &session.Request{Model: "gemini-2.0-flash", Messages: []core.Message{core.UserMessage("x")}})
	require.NoError(t, err)
	assert.Nil(t, resp.TokensUsed)
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"API returned unexpected status code: 429: Rate limit reached", core.ErrQuotaExceeded},
		{"API returned unexpected status code: 404: The model `gpt-9` does not exist", core.ErrModelUnavailable},
		{"dial tcp 127.0.0.1:443: connection refused", core.ErrRequestFailed},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			b := langchain.NewBackend(langchain.OpenAI, "gpt-4o", &fakeModel{err: errors.New(tt.msg)})
			_, err := b.Generate(context.Background(), request())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStream(t *testing.T) {
	b := langchain.NewBackend(langchain.Mistral, "mistral-small", &fakeModel{chunks: []string{"a", "", "b", "c"}})

	var got []string
	for chunk, err := range b.Stream(context.Background(), request()) {
		require.NoError(t, err)
		got = append(got, chunk.Content)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestStreamEarlyBreak(t *testing.T) {
	b := langchain.NewBackend(langchain.Mistral, "mistral-small", &fakeModel{chunks: []string{"a", "b", "c"}})

	var got []string
	for chunk, err := range b.Stream(context.Background(), request()) {
		require.NoError(t, err)
		got = append(got, chunk.Content)
		break
	}
	assert.Equal(t, []string{"a"}, got)
}

func TestStreamError(t *testing.T) {
	b := langchain.NewBackend(langchain.OpenAI, "gpt-4o", &fakeModel{err: errors.New("too many requests")})

	var errs []error
	for _, err := range b.Stream(context.Background(), request()) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], core.ErrQuotaExceeded)
}

func TestMissingKeys(t *testing.T) {
	_, err := langchain.NewOpenAI("", "gpt-4o", "")
	assert.ErrorIs(t, err, core.ErrConfiguration)
	_, err = langchain.NewGemini(context.Background(), "", "gemini-2.0-flash")
	assert.ErrorIs(t, err, core.ErrConfiguration)
	_, err = langchain.NewMistral("", "mistral-small")
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestRegister(t *testing.T) {
	r := session.NewRegistry()
	langchain.Register(r)

	total := len(langchain.OpenAIModels) + len(langchain.GeminiModels) + len(langchain.MistralModels)
	assert.Len(t, r.Models(), total)

	_, err := r.New(langchain.Mistral, "mistral-tiny", session.StaticCredentials{})
	assert.ErrorIs(t, err, core.ErrConfiguration)

	s, err := r.New(langchain.OpenAI, "gpt-4o", session.StaticCredentials{langchain.OpenAI: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, langchain.OpenAI, s.Provider())
}
