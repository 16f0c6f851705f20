package session_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/chat-go-sdk/core"
	"github.com/becomeliminal/chat-go-sdk/memory"
	"github.com/becomeliminal/chat-go-sdk/provider/mock"
	"github.com/becomeliminal/chat-go-sdk/session"
)

func newSession(t *testing.T, backend session.Backend) *session.Session {
	t.Helper()
	mem := memory.New(filepath.Join(t.TempDir(), "mem"))
	return session.New(mock.Provider, mock.Model, backend, session.WithMemory(mem))
}

func drain(t *testing.T, seq func(func(*core.Response, error) bool)) []string {
	t.Helper()
	var chunks []string
	for chunk, err := range seq {
		require.NoError(t, err)
		chunks = append(chunks, chunk.Content)
	}
	return chunks
}

func TestAskRecordsTurns(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, mock.New())
	assert.Equal(t, session.Fresh, s.State())

	const turns = 4
	for i := 0; i < turns; i++ {
		resp, err := s.Ask(ctx, "hello")
		require.NoError(t, err)
		assert.Equal(t, "This is a mock response to: hello", resp.Content)
		require.NotNil(t, resp.TokensUsed)
		assert.Equal(t, 10, *resp.TokensUsed)
	}

	history := s.History()
	require.Len(t, history, 2*turns)
	for i, msg := range history {
		if i%2 == 0 {
			assert.Equal(t, core.RoleUser, msg.Role)
		} else {
			assert.Equal(t, core.RoleAssistant, msg.Role)
		}
	}
	assert.Equal(t, session.Active, s.State())
}

func TestAskSendsHistoryAndConfig(t *testing.T) {
	ctx := context.Background()
	backend := mock.New()
	s := newSession(t, backend).SysPrompt("be brief").Temperature(0.2).MaxTokens(64)

	_, err := s.Ask(ctx, "first")
	require.NoError(t, err)
	_, err = s.Ask(ctx, "second")
	require.NoError(t, err)

	reqs := backend.Requests()
	require.Len(t, reqs, 2)

	last := reqs[1]
	require.Len(t, last.Messages, 3)
	assert.Equal(t, core.UserMessage("first"), last.Messages[0])
	assert.Equal(t, core.RoleAssistant, last.Messages[1].Role)
	assert.Equal(t, core.UserMessage("second"), last.Messages[2])
	for _, msg := range last.Messages {
		assert.NotEqual(t, core.RoleSystem, msg.Role, "system prompt must not be part of the history")
	}
	require.NotNil(t, last.System)
	assert.Equal(t, "be brief", last.System.Content)
	require.NotNil(t, last.Temperature)
	assert.Equal(t, 0.2, *last.Temperature)
	require.NotNil(t, last.MaxTokens)
	assert.Equal(t, 64, *last.MaxTokens)
}

func TestAskFiltersWholeReply(t *testing.T) {
	s := newSession(t, mock.New(mock.WithReply("  padded  "))).ReplyFilter(strings.TrimSpace)

	resp, err := s.Ask(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "padded", resp.Content)
	assert.Equal(t, "padded", s.History()[1].Content)
}

func TestAskErrorCommitsNothing(t *testing.T) {
	quota := core.NewProviderError(core.ErrQuotaExceeded, mock.Provider, mock.Model, nil)
	s := newSession(t, mock.New(mock.WithError(quota)))
	require.NoError(t, s.Memory().EnableLongTerm(true))

	_, err := s.Ask(context.Background(), "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrQuotaExceeded)
	assert.Empty(t, s.History())
	assert.Empty(t, s.Memory().LoadRecentHistory(1))
}

func TestAskCancelledContextCommitsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newSession(t, mock.New())
	_, err := s.Ask(ctx, "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.History())
}

func TestAskAsyncKeepsIssueOrder(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, mock.New())

	const n = 20
	var want []string
	results := make([]<-chan session.Result, n)
	for i := range results {
		prompt := fmt.Sprintf("q%02d", i)
		want = append(want, prompt)
		results[i] = s.AskAsync(ctx, prompt)
	}
	for i, ch := range results {
		res := <-ch
		require.NoError(t, res.Err)
		assert.Equal(t, "This is a mock response to: "+want[i], res.Response.Content)
	}

	history := s.History()
	require.Len(t, history, 2*n)
	var got []string
	for i := 0; i < len(history); i += 2 {
		assert.Equal(t, core.RoleUser, history[i].Role)
		assert.Equal(t, core.RoleAssistant, history[i+1].Role)
		got = append(got, history[i].Content)
	}
	assert.Equal(t, want, got)
}

// gateBackend blocks every Generate call until gate is closed.
type gateBackend struct {
	*mock.Backend
	started chan string
	gate    chan struct{}
}

func newGateBackend() *gateBackend {
	return &gateBackend{Backend: mock.New(), started: make(chan string, 16), gate: make(chan struct{})}
}

func (b *gateBackend) Generate(ctx context.Context, req *session.Request) (*core.Response, error) {
	b.started <- req.LastUserMessage()
	<-b.gate
	return b.Backend.Generate(ctx, req)
}

func TestAskWaitsForEarlierTurns(t *testing.T) {
	ctx := context.Background()
	backend := newGateBackend()
	s := newSession(t, backend)

	first := s.AskAsync(ctx, "first")
	assert.Equal(t, "first", <-backend.started)

	second := make(chan error, 1)
	go func() {
		_, err := s.Ask(ctx, "second")
		second <- err
	}()
	select {
	case prompt := <-backend.started:
		t.Fatalf("%q started while an earlier turn was in flight", prompt)
	case <-time.After(20 * time.Millisecond):
	}

	close(backend.gate)
	require.NoError(t, (<-first).Err)
	require.NoError(t, <-second)
	assert.Equal(t, "second", s.History()[2].Content)
}

func TestAskCancelledWhileQueued(t *testing.T) {
	backend := newGateBackend()
	s := newSession(t, backend)

	first := s.AskAsync(context.Background(), "first")
	<-backend.started

	ctx, cancel := context.WithCancel(context.Background())
	queued := s.AskAsync(ctx, "queued")
	cancel()
	res := <-queued
	assert.ErrorIs(t, res.Err, context.Canceled)

	close(backend.gate)
	require.NoError(t, (<-first).Err)
	_, err := s.Ask(context.Background(), "third")
	require.NoError(t, err)

	history := s.History()
	require.Len(t, history, 4)
	assert.Equal(t, "first", history[0].Content)
	assert.Equal(t, "third", history[2].Content)
}

func TestResetWaitsForTurnInFlight(t *testing.T) {
	backend := newGateBackend()
	s := newSession(t, backend).SysPrompt("sys")

	pending := s.AskAsync(context.Background(), "slow")
	<-backend.started

	reset := make(chan struct{})
	go func() {
		s.Reset()
		close(reset)
	}()
	select {
	case <-reset:
		t.Fatal("Reset returned while a turn was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(backend.gate)
	<-reset
	require.NoError(t, (<-pending).Err)
	assert.Empty(t, s.History())
	_, ok := s.SystemPrompt()
	assert.False(t, ok)
}

func TestAskStreamCommitsOnExhaustion(t *testing.T) {
	s := newSession(t, mock.New())
	require.NoError(t, s.Memory().EnableLongTerm(true))

	chunks := drain(t, s.AskStream(context.Background(), "stream please"))
	assert.Equal(t, mock.DefaultChunks, chunks)

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, core.UserMessage("stream please"), history[0])
	assert.Equal(t, "This is a mock streamed response.", history[1].Content)
	assert.Equal(t, history, s.Memory().LoadRecentHistory(1))
}

func TestAskStreamFiltersEachChunk(t *testing.T) {
	s := newSession(t, mock.New()).ReplyFilter(strings.TrimSpace)

	chunks := drain(t, s.AskStream(context.Background(), "x"))
	assert.Equal(t, []string{"This", "is", "a", "mock", "streamed", "response."}, chunks)
	assert.Equal(t, "Thisisamockstreamedresponse.", s.History()[1].Content)
}

func TestAskStreamAbandonedLeavesHistory(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, mock.New())
	require.NoError(t, s.Memory().EnableLongTerm(true))

	_, err := s.Ask(ctx, "before")
	require.NoError(t, err)
	before := s.History()

	consumed := 0
	for _, err := range s.AskStream(ctx, "abandon me") {
		require.NoError(t, err)
		consumed++
		if consumed == 2 {
			break
		}
	}

	assert.Equal(t, 2, consumed)
	assert.Equal(t, before, s.History())
	assert.Len(t, s.Memory().LoadRecentHistory(5), 2)

	// The session is usable afterwards.
	_, err = s.Ask(ctx, "after")
	require.NoError(t, err)
	assert.Len(t, s.History(), 4)
}

func TestAskStreamCancelledLeavesHistory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newSession(t, mock.New(mock.WithDelay(5*time.Millisecond)))

	var gotErr error
	for _, err := range s.AskStream(ctx, "x") {
		if err != nil {
			gotErr = err
			break
		}
		cancel()
	}

	require.Error(t, gotErr)
	assert.ErrorIs(t, gotErr, context.Canceled)
	assert.Empty(t, s.History())
}

func TestAskStreamIsSinglePass(t *testing.T) {
	s := newSession(t, mock.New())
	stream := s.AskStream(context.Background(), "once")

	drain(t, stream)
	for _, err := range stream {
		assert.ErrorIs(t, err, session.ErrStreamConsumed)
	}
	assert.Len(t, s.History(), 2)
}

func TestAskStreamIsLazy(t *testing.T) {
	backend := mock.New()
	s := newSession(t, backend)

	_ = s.AskStream(context.Background(), "never ranged")
	assert.Empty(t, backend.Requests())
	assert.Empty(t, s.History())
}

func TestResetClearsEverything(t *testing.T) {
	backend := mock.New()
	s := newSession(t, backend).
		SysPrompt("sys").
		ReplyFilter(strings.ToUpper).
		Temperature(1.1).
		MaxTokens(5)
	_, err := s.Ask(context.Background(), "hi")
	require.NoError(t, err)

	s.Reset()

	assert.Equal(t, session.Fresh, s.State())
	_, ok := s.SystemPrompt()
	assert.False(t, ok)
	info := s.ModelInfo()
	assert.Nil(t, info.Temperature)
	assert.Nil(t, info.MaxTokens)

	resp, err := s.Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "This is a mock response to: hi", resp.Content, "filter should be cleared")
	last := backend.Requests()[1]
	assert.Nil(t, last.System)
	assert.Len(t, last.Messages, 1)
}

func TestModelInfo(t *testing.T) {
	s := newSession(t, mock.New()).Temperature(0.5)
	info := s.ModelInfo()

	assert.Equal(t, mock.Model, info.Model)
	assert.Equal(t, mock.Provider, info.Provider)
	require.NotNil(t, info.Temperature)
	assert.Equal(t, 0.5, *info.Temperature)
	assert.Nil(t, info.MaxTokens)
}

func TestEnableMemoryReplaysLongTerm(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "mem")

	first := session.New(mock.Provider, mock.Model, mock.New(), session.WithMemory(memory.New(dir)))
	require.NoError(t, first.EnableMemory(true, true, 5))
	_, err := first.Ask(ctx, "remember me")
	require.NoError(t, err)

	second := session.New(mock.Provider, mock.Model, mock.New(), session.WithMemory(memory.New(dir)))
	require.NoError(t, second.EnableMemory(true, true, 5))
	assert.Equal(t, first.History(), second.History())

	require.NoError(t, second.EnableMemory(false, false, 0))
	assert.Empty(t, second.History())
	assert.False(t, second.Memory().LongTermEnabled())
}

func TestRegistry(t *testing.T) {
	r := session.NewRegistry()
	mock.Register(r)

	s, err := r.New(mock.Provider, mock.Model, nil)
	require.NoError(t, err)
	assert.Equal(t, mock.Model, s.Model())

	_, err = r.New(mock.Provider, "gpt-9", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrModelUnavailable)
	var unknown *core.UnknownModelError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{mock.Model}, unknown.Known)

	assert.Equal(t, []session.ModelID{{Provider: mock.Provider, Model: mock.Model}}, r.Models())
}

func TestRegistryMissingCredential(t *testing.T) {
	r := session.NewRegistry()
	called := false
	r.Register("keyed", "m", func(apiKey, model string) (session.Backend, error) {
		if apiKey == "" {
			return nil, core.MissingCredentialError("keyed")
		}
		called = true
		return mock.New(), nil
	})

	_, err := r.New("keyed", "m", session.StaticCredentials{})
	assert.ErrorIs(t, err, core.ErrConfiguration)
	assert.False(t, called)

	_, err = r.New("keyed", "m", session.StaticCredentials{"keyed": "secret"})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := session.NewRegistry()
	mock.Register(r)

	original, err := r.New(mock.Provider, mock.Model, nil,
		session.WithMemory(memory.New(filepath.Join(t.TempDir(), "a"))))
	require.NoError(t, err)
	original.SysPrompt("you are terse").Temperature(0.7).MaxTokens(128)
	for _, p := range []string{"one", "two"} {
		_, err := original.Ask(ctx, p)
		require.NoError(t, err)
	}

	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, original.Save(path))

	loaded, err := r.Load(path, nil, session.WithMemory(memory.New(filepath.Join(t.TempDir(), "b"))))
	require.NoError(t, err)

	assert.Equal(t, original.History(), loaded.History())
	assert.Equal(t, original.ModelInfo(), loaded.ModelInfo())
	wantSys, _ := original.SystemPrompt()
	gotSys, ok := loaded.SystemPrompt()
	require.True(t, ok)
	assert.Equal(t, wantSys, gotSys)
}

func TestSaveFormat(t *testing.T) {
	s := newSession(t, mock.New())
	path := filepath.Join(t.TempDir(), "fresh.json")
	require.NoError(t, s.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"model_name": "mock-model",
		"provider": "mock",
		"history": [],
		"sys_prompt": null,
		"temperature": null,
		"max_tokens": null
	}`, string(data))
}

func TestLoadErrors(t *testing.T) {
	r := session.NewRegistry()
	mock.Register(r)
	dir := t.TempDir()

	_, err := r.Load(filepath.Join(dir, "missing.json"), nil)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"model_name": "x", "provider": "mock"}`), 0o644))
	_, err = r.Load(bad, nil)
	assert.ErrorIs(t, err, core.ErrModelUnavailable)
}
