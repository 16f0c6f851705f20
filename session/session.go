package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/becomeliminal/chat-go-sdk/core"
	"github.com/becomeliminal/chat-go-sdk/memory"
)

// ErrStreamConsumed is yielded when a stream returned by AskStream is
// ranged over a second time.
var ErrStreamConsumed = errors.New("stream already consumed")

// State is the lifecycle state of a Session.
type State int

const (
	// Fresh means no turn has been recorded.
	Fresh State = iota
	// Active means the history holds at least one turn.
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "fresh"
}

// Info describes the model behind a session and its sampling settings.
type Info struct {
	Model       string   `json:"model"`
	Provider    string   `json:"provider"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
}

// Result is the value delivered by AskAsync.
type Result struct {
	Response *core.Response
	Err      error
}

// Option configures a Session.
type Option func(*Session)

// WithMemory sets the memory manager. By default each session gets its own
// manager rooted at memory.DefaultDir with long-term mode disabled.
func WithMemory(m *memory.Manager) Option {
	return func(s *Session) {
		if m != nil {
			s.memory = m
		}
	}
}

// WithLogger sets the logger for turn failures.
func WithLogger(logger *log.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Session is a conversation with one model.
type Session struct {
	provider string
	model    string
	backend  Backend
	memory   *memory.Manager
	logger   *log.Logger

	// turns runs turns, resets and memory changes one at a time in call
	// order. mu guards the configuration below and makes history commits
	// atomic with respect to readers.
	turns Queue
	mu    sync.RWMutex

	sysPrompt   *core.Message
	filter      func(string) string
	temperature *float64
	maxTokens   *int
}

// New creates a session over backend.
func New(provider, model string, backend Backend, opts ...Option) *Session {
	s := &Session{
		provider: provider,
		model:    model,
		backend:  backend,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.memory == nil {
		s.memory = memory.New(memory.DefaultDir, memory.WithLogger(s.logger))
	}
	return s
}

// Provider returns the provider identifier.
func (s *Session) Provider() string { return s.provider }

// Model returns the model identifier.
func (s *Session) Model() string { return s.model }

// Memory returns the session's memory manager.
func (s *Session) Memory() *memory.Manager { return s.memory }

// SysPrompt sets the system prompt.
func (s *Session) SysPrompt(prompt string) *Session {
	msg := core.SystemMessage(prompt)
	s.mu.Lock()
	s.sysPrompt = &msg
	s.mu.Unlock()
	return s
}

// ReplyFilter sets a function applied to reply text before it is recorded.
// In streaming mode the filter runs on each chunk separately.
func (s *Session) ReplyFilter(fn func(string) string) *Session {
	s.mu.Lock()
	s.filter = fn
	s.mu.Unlock()
	return s
}

// Temperature sets the sampling temperature. Range checks are left to the provider.
func (s *Session) Temperature(t float64) *Session {
	s.mu.Lock()
	s.temperature = &t
	s.mu.Unlock()
	return s
}

// MaxTokens limits the length of replies.
func (s *Session) MaxTokens(n int) *Session {
	s.mu.Lock()
	s.maxTokens = &n
	s.mu.Unlock()
	return s
}

// Reset clears the short-term history together with the system prompt,
// reply filter, temperature and token limit. It waits for turns already
// issued to finish, so it must not be called from inside an AskStream loop
// on the same session.
func (s *Session) Reset() *Session {
	slot := s.turns.Reserve()
	_ = slot.Wait(context.Background())
	defer slot.Release()

	s.mu.Lock()
	s.memory.Clear()
	s.sysPrompt = nil
	s.filter = nil
	s.temperature = nil
	s.maxTokens = nil
	s.mu.Unlock()
	return s
}

// History returns a copy of the conversation so far.
func (s *Session) History() []core.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memory.History()
}

// SystemPrompt returns the current system prompt, if any.
func (s *Session) SystemPrompt() (core.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sysPrompt == nil {
		return core.Message{}, false
	}
	return *s.sysPrompt, true
}

// State reports whether the session has recorded any turn.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.memory.Len() == 0 {
		return Fresh
	}
	return Active
}

// ModelInfo returns the model identity and sampling settings.
func (s *Session) ModelInfo() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		Model:       s.model,
		Provider:    s.provider,
		Temperature: cloneFloat(s.temperature),
		MaxTokens:   cloneInt(s.maxTokens),
	}
}

// EnableMemory configures both memory tiers. With shortTerm false the
// current history is dropped. With longTerm true the log is enabled and its
// last recentTurns turns are placed before the current history.
func (s *Session) EnableMemory(shortTerm, longTerm bool, recentTurns int) error {
	slot := s.turns.Reserve()
	_ = slot.Wait(context.Background())
	defer slot.Release()

	if err := s.memory.EnableLongTerm(longTerm); err != nil {
		return err
	}
	var recent []core.Message
	if longTerm {
		recent = s.memory.LoadRecentHistory(recentTurns)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !shortTerm {
		s.memory.Clear()
	}
	s.memory.Prepend(recent...)
	return nil
}

// Ask sends prompt and blocks until the reply is recorded.
func (s *Session) Ask(ctx context.Context, prompt string) (*core.Response, error) {
	return s.ask(ctx, s.turns.Reserve(), prompt)
}

func (s *Session) ask(ctx context.Context, slot *Slot, prompt string) (*core.Response, error) {
	if err := slot.Wait(ctx); err != nil {
		return nil, err
	}
	defer slot.Release()

	req, filter := s.prepare(prompt)

	resp, err := s.backend.Generate(ctx, req)
	if err != nil {
		s.logger.Printf("[SESSION] %s/%s: turn failed: %v", s.provider, s.model, err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := *resp
	if filter != nil {
		out.Content = filter(out.Content)
	}

	if err := s.commit(prompt, out.Content); err != nil {
		return nil, err
	}
	return &out, nil
}

// AskAsync runs Ask on a new goroutine and delivers its outcome on the
// returned channel, which receives exactly one value. The turn's place in
// line is taken before AskAsync returns, so turns issued one after another
// are recorded in that order.
func (s *Session) AskAsync(ctx context.Context, prompt string) <-chan Result {
	slot := s.turns.Reserve()
	ch := make(chan Result, 1)
	go func() {
		resp, err := s.ask(ctx, slot, prompt)
		ch <- Result{Response: resp, Err: err}
	}()
	return ch
}

// AskStream returns the reply to prompt as a sequence of chunks.
//
// Nothing happens until the sequence is ranged over. The turn is recorded
// only if the loop runs to completion; breaking out early discards it.
// The turn joins the session's queue when the loop starts and holds it for
// the duration of the loop, so the loop body must not start another turn
// or Reset the same session.
func (s *Session) AskStream(ctx context.Context, prompt string) iter.Seq2[*core.Response, error] {
	var used atomic.Bool
	return func(yield func(*core.Response, error) bool) {
		if !used.CompareAndSwap(false, true) {
			yield(nil, ErrStreamConsumed)
			return
		}

		slot := s.turns.Reserve()
		if err := slot.Wait(ctx); err != nil {
			yield(nil, err)
			return
		}
		defer slot.Release()

		req, filter := s.prepare(prompt)

		var full strings.Builder
		for chunk, err := range s.backend.Stream(ctx, req) {
			if err != nil {
				s.logger.Printf("[SESSION] %s/%s: stream failed: %v", s.provider, s.model, err)
				yield(nil, err)
				return
			}
			out := *chunk
			if filter != nil {
				out.Content = filter(out.Content)
			}
			full.WriteString(out.Content)
			if !yield(&out, nil) {
				return
			}
		}

		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}
		if err := s.commit(prompt, full.String()); err != nil {
			yield(nil, err)
		}
	}
}

// prepare snapshots the configuration and builds the request for prompt.
func (s *Session) prepare(prompt string) (*Request, func(string) string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.memory.History()
	req := &Request{
		Model:       s.model,
		Messages:    append(history, core.UserMessage(prompt)),
		Temperature: cloneFloat(s.temperature),
		MaxTokens:   cloneInt(s.maxTokens),
	}
	if s.sysPrompt != nil {
		sys := *s.sysPrompt
		req.System = &sys
	}
	return req, s.filter
}

// commit records a completed turn. The long-term record is written first
// so that a failed write leaves the history unchanged.
func (s *Session) commit(prompt, reply string) error {
	user := core.UserMessage(prompt)
	assistant := core.AssistantMessage(reply)

	if err := s.memory.SaveTurn(user, assistant); err != nil {
		return fmt.Errorf("save turn: %w", err)
	}

	s.mu.Lock()
	s.memory.Append(user, assistant)
	s.mu.Unlock()
	return nil
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
