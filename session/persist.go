package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/becomeliminal/chat-go-sdk/core"
)

// savedSession is the on-disk form of a session.
type savedSession struct {
	ModelName   string         `json:"model_name"`
	Provider    string         `json:"provider"`
	History     []core.Message `json:"history"`
	SysPrompt   *core.Message  `json:"sys_prompt"`
	Temperature *float64       `json:"temperature"`
	MaxTokens   *int           `json:"max_tokens"`
}

// Save writes the model identity, history, system prompt and sampling
// settings to path as one JSON object. The reply filter is not saved.
func (s *Session) Save(path string) error {
	s.mu.RLock()
	state := savedSession{
		ModelName:   s.model,
		Provider:    s.provider,
		History:     s.memory.History(),
		SysPrompt:   s.sysPrompt,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}
	if state.History == nil {
		state.History = []core.Message{}
	}
	data, err := json.MarshalIndent(state, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return writeFileAtomic(path, append(data, '\n'))
}

// Load reads a session saved with Save and rebuilds it with a backend from
// the registry. The restored session continues the saved conversation
// exactly where it stopped.
func (r *Registry) Load(path string, creds Credentials, opts ...Option) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var state savedSession
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", path, err)
	}
	if state.ModelName == "" || state.Provider == "" {
		return nil, fmt.Errorf("decode session %s: model_name and provider are required", path)
	}

	s, err := r.New(state.Provider, state.ModelName, creds, opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.memory.Replace(state.History)
	s.sysPrompt = state.SysPrompt
	s.temperature = state.Temperature
	s.maxTokens = state.MaxTokens
	s.mu.Unlock()
	return s, nil
}

// writeFileAtomic replaces path with data via a temporary file and rename.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
