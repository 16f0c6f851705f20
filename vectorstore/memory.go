package vectorstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store that scores every entry on each query.
//
// Entries keep the position of their first insertion; replacing an entry
// does not move it. Results with equal scores are returned in that order.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
	indent  bool
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithIndent makes Save write an indented document.
func WithIndent(indent bool) Option {
	return func(s *MemoryStore) { s.indent = indent }
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{index: make(map[string]int)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add inserts or replaces an entry. The vector and metadata are copied.
func (s *MemoryStore) Add(_ context.Context, id string, vector []float32, metadata map[string]any) error {
	entry := Entry{
		ID:       id,
		Vector:   slices.Clone(vector),
		Metadata: maps.Clone(metadata),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[id]; ok {
		s.entries[i] = entry
		return nil
	}
	s.index[id] = len(s.entries)
	s.entries = append(s.entries, entry)
	return nil
}

// SimilaritySearch scores every entry against query and returns the best
// topK. A query whose length differs from a stored vector yields a
// *DimensionError.
func (s *MemoryStore) SimilaritySearch(_ context.Context, query []float32, topK int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK <= 0 || len(s.entries) == 0 {
		return []Result{}, nil
	}

	results := make([]Result, 0, len(s.entries))
	for _, e := range s.entries {
		if len(e.Vector) != len(query) {
			return nil, &DimensionError{ID: e.ID, Query: len(query), Entry: len(e.Vector)}
		}
		results = append(results, Result{
			ID:       e.ID,
			Score:    CosineSimilarity(query, e.Vector),
			Metadata: maps.Clone(e.Metadata),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Entries returns a copy of all entries in insertion order.
func (s *MemoryStore) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries)
}

// Len returns the number of entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Save writes the store to path.
func (s *MemoryStore) Save(path string) error {
	s.mu.RLock()
	entries := slices.Clone(s.entries)
	indent := s.indent
	s.mu.RUnlock()
	return WriteFile(path, entries, indent)
}

// Load replaces the contents of the store with the document at path.
// On error the store is left unchanged.
func (s *MemoryStore) Load(path string) error {
	entries, err := ReadFile(path)
	if err != nil {
		return err
	}

	index := make(map[string]int, len(entries))
	for i, e := range entries {
		index[e.ID] = i
	}

	s.mu.Lock()
	s.entries = entries
	s.index = index
	s.mu.Unlock()
	return nil
}
