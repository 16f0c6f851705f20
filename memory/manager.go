package memory

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/becomeliminal/chat-go-sdk/core"
)

// maxLineSize bounds a single long-term record. Longer lines are treated as
// unreadable log data.
const maxLineSize = 5 * 1024 * 1024

// Manager owns the short-term history of one session and, optionally, the
// long-term log on disk.
//
// Manager is safe for concurrent use. Append takes all messages of a turn
// under one lock, so readers never observe half a turn.
type Manager struct {
	mu       sync.RWMutex
	history  []core.Message
	longTerm bool

	dir  string
	path string

	// writeMu serializes appends to the log file within this process.
	writeMu sync.Mutex

	logger *log.Logger
}

// New creates a Manager whose long-term log lives in dir.
// An empty dir means DefaultDir. Long-term mode starts disabled.
func New(dir string, opts ...Option) *Manager {
	if dir == "" {
		dir = DefaultDir
	}
	m := &Manager{
		dir:    dir,
		path:   filepath.Join(dir, LogFile),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dir returns the long-term memory directory.
func (m *Manager) Dir() string { return m.dir }

// Path returns the long-term log file path.
func (m *Manager) Path() string { return m.path }

// Append adds messages to the short-term history as one unit.
func (m *Manager) Append(msgs ...core.Message) {
	m.mu.Lock()
	m.history = append(m.history, msgs...)
	m.mu.Unlock()
}

// Prepend inserts messages before the current history.
func (m *Manager) Prepend(msgs ...core.Message) {
	if len(msgs) == 0 {
		return
	}
	m.mu.Lock()
	merged := make([]core.Message, 0, len(msgs)+len(m.history))
	merged = append(merged, msgs...)
	m.history = append(merged, m.history...)
	m.mu.Unlock()
}

// Replace swaps the short-term history for a copy of history.
func (m *Manager) Replace(history []core.Message) {
	m.mu.Lock()
	m.history = append([]core.Message(nil), history...)
	m.mu.Unlock()
}

// History returns a copy of the short-term history.
func (m *Manager) History() []core.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]core.Message(nil), m.history...)
}

// Len returns the number of messages in the short-term history.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.history)
}

// Clear empties the short-term history. The long-term log is untouched.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.history = nil
	m.mu.Unlock()
}

// EnableLongTerm toggles durable persistence. Enabling creates the memory
// directory if needed; if that fails the mode is left unchanged.
func (m *Manager) EnableLongTerm(enable bool) error {
	if enable {
		if err := os.MkdirAll(m.dir, 0o755); err != nil {
			return fmt.Errorf("create memory dir: %w", err)
		}
	}
	m.mu.Lock()
	m.longTerm = enable
	m.mu.Unlock()
	return nil
}

// LongTermEnabled reports whether SaveTurn writes to disk.
func (m *Manager) LongTermEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.longTerm
}

// SaveTurn appends one record to the long-term log. It is a no-op while
// long-term mode is disabled. The record is written with a single write
// call on a file opened in append mode.
func (m *Manager) SaveTurn(user, assistant core.Message) error {
	if !m.LongTermEnabled() {
		return nil
	}

	line, err := json.Marshal(NewRecord(user, assistant))
	if err != nil {
		return fmt.Errorf("encode memory record: %w", err)
	}
	line = append(line, '\n')

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open memory log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("append memory record: %w", err)
	}
	return f.Close()
}

// LoadRecentHistory returns the last n turns of the long-term log as 2n
// messages in chronological order. The log is read whether or not
// long-term writes are currently enabled.
//
// A missing log yields nil. An unreadable log, or any malformed record
// among the last n, yields nil and a logged warning.
func (m *Manager) LoadRecentHistory(n int) []core.Message {
	if n <= 0 {
		return nil
	}

	lines, err := m.tail(n)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			m.logger.Printf("[MEMORY] Warning: cannot read %s: %v", m.path, err)
		}
		return nil
	}

	history := make([]core.Message, 0, 2*len(lines))
	for _, line := range lines {
		rec, err := decodeRecord(line)
		if err != nil {
			m.logger.Printf("[MEMORY] Warning: ignoring long-term history in %s: %v", m.path, err)
			return nil
		}
		history = append(history, rec.User, rec.Assistant)
	}

	m.logger.Printf("[MEMORY] Loaded %d turns from %s", len(lines), m.path)
	return history
}

// tail returns the last n non-empty lines of the log file.
func (m *Manager) tail(n int) ([][]byte, error) {
	f, err := os.Open(m.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([][]byte, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		line := append([]byte(nil), raw...)
		if len(ring) < n {
			ring = append(ring, line)
			continue
		}
		copy(ring, ring[1:])
		ring[n-1] = line
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ring, nil
}
