package memory

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/becomeliminal/chat-go-sdk/core"
)

const (
	// DefaultDir is the directory used for the long-term log when none is given.
	DefaultDir = ".fcvs"

	// LogFile is the name of the long-term log inside the memory directory.
	LogFile = "memory.jsonl"

	// DefaultRecentTurns is how many turns are replayed when a caller does
	// not say otherwise.
	DefaultRecentTurns = 5
)

// Record is one completed turn as stored in the long-term log.
type Record struct {
	Timestamp time.Time    `json:"timestamp"`
	User      core.Message `json:"user"`
	Assistant core.Message `json:"assistant"`
}

// NewRecord stamps a turn with the current UTC time.
func NewRecord(user, assistant core.Message) Record {
	return Record{
		Timestamp: time.Now().UTC(),
		User:      user,
		Assistant: assistant,
	}
}

// decodeRecord parses one log line.
func decodeRecord(line []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", core.ErrMalformedRecord, err)
	}
	if !rec.User.Role.Valid() || !rec.Assistant.Role.Valid() {
		return Record{}, fmt.Errorf("%w: missing user or assistant message", core.ErrMalformedRecord)
	}
	return rec, nil
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for warnings about the long-term log.
func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithHistory seeds the short-term history.
func WithHistory(history []core.Message) Option {
	return func(m *Manager) {
		m.history = append([]core.Message(nil), history...)
	}
}
