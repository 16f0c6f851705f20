// Package chromem provides a vectorstore.Store backed by chromem-go, an
// embedded vector database, with support for metadata filters.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"maps"
	"slices"
	"sort"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/chat-go-sdk/vectorstore"
)

// DefaultCollection is the chromem collection name used by New.
const DefaultCollection = "documents"

// Store wraps a chromem-go collection.
//
// chromem normalizes vectors on insert and scores with the dot product, so
// scores equal the cosine similarity. Zero-magnitude vectors cannot be
// normalized; they are kept out of the collection and always score 0.
// The store also keeps the original vectors and metadata in insertion order
// for Save and for breaking score ties.
type Store struct {
	mu      sync.RWMutex
	db      *chromem.DB
	col     *chromem.Collection
	name    string
	entries []vectorstore.Entry
	index   map[string]int
	indent  bool
	logger  *log.Logger
}

// Ensure Store implements vectorstore.Store.
var _ vectorstore.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithCollection sets the chromem collection name.
func WithCollection(name string) Option {
	return func(s *Store) { s.name = name }
}

// WithIndent makes Save write an indented document.
func WithIndent(indent bool) Option {
	return func(s *Store) { s.indent = indent }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an empty chromem-based store.
func New(opts ...Option) (*Store, error) {
	s := &Store{
		name:   DefaultCollection,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.reset(); err != nil {
		return nil, err
	}
	return s, nil
}

// reset replaces the database with an empty one. Callers hold s.mu or own s.
func (s *Store) reset() error {
	db := chromem.NewDB()
	col, err := db.CreateCollection(
		s.name,
		nil, // No collection metadata
		nil, // No embedding func (we provide embeddings)
	)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	s.db = db
	s.col = col
	s.entries = nil
	s.index = make(map[string]int)
	return nil
}

// Add inserts or replaces an entry.
func (s *Store) Add(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(ctx, vectorstore.Entry{
		ID:       id,
		Vector:   slices.Clone(vector),
		Metadata: maps.Clone(metadata),
	})
}

func (s *Store) add(ctx context.Context, entry vectorstore.Entry) error {
	if isZero(entry.Vector) {
		// Drop any earlier non-zero version from the collection.
		if _, ok := s.index[entry.ID]; ok {
			if err := s.col.Delete(ctx, nil, nil, entry.ID); err != nil {
				return fmt.Errorf("delete document: %w", err)
			}
		}
	} else {
		doc := chromem.Document{
			ID:        entry.ID,
			Content:   contentOf(entry.Metadata),
			Embedding: slices.Clone(entry.Vector),
			Metadata:  stringMetadata(entry.Metadata),
		}
		if err := s.col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document: %w", err)
		}
	}

	if i, ok := s.index[entry.ID]; ok {
		s.entries[i] = entry
		return nil
	}
	s.index[entry.ID] = len(s.entries)
	s.entries = append(s.entries, entry)
	return nil
}

// SimilaritySearch returns the topK entries most similar to query.
func (s *Store) SimilaritySearch(ctx context.Context, query []float32, topK int) ([]vectorstore.Result, error) {
	return s.SearchWhere(ctx, query, topK, nil)
}

// SearchWhere is SimilaritySearch restricted to entries whose metadata
// matches every key in where. Non-string metadata values are matched
// against their JSON encoding.
func (s *Store) SearchWhere(ctx context.Context, query []float32, topK int, where map[string]string) ([]vectorstore.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK <= 0 || len(s.entries) == 0 {
		return []vectorstore.Result{}, nil
	}
	for _, e := range s.entries {
		if len(e.Vector) != len(query) {
			return nil, &vectorstore.DimensionError{ID: e.ID, Query: len(query), Entry: len(e.Vector)}
		}
	}

	scores := make(map[string]float64)
	if !isZero(query) {
		// Score the whole collection so that ties at the topK boundary are
		// broken by insertion order below, not by chromem's heap order.
		// chromem requires nResults <= collection size.
		if n := s.col.Count(); n > 0 {
			results, err := s.col.QueryEmbedding(ctx, slices.Clone(query), n, where, nil)
			if err != nil {
				return nil, fmt.Errorf("chromem query: %w", err)
			}
			for _, r := range results {
				scores[r.ID] = float64(r.Similarity)
			}
		}
	}

	// Zero vectors live outside the collection and score 0, as does every
	// entry against a zero query.
	for _, e := range s.entries {
		if (isZero(e.Vector) || isZero(query)) && matches(e.Metadata, where) {
			scores[e.ID] = 0
		}
	}

	out := make([]vectorstore.Result, 0, len(scores))
	for id, score := range scores {
		e := s.entries[s.index[id]]
		out = append(out, vectorstore.Result{ID: id, Score: score, Metadata: maps.Clone(e.Metadata)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return s.index[out[i].ID] < s.index[out[j].ID]
	})

	if len(out) > topK {
		out = out[:topK]
	}
	s.logger.Printf("[CHROMEM] Query returned %d of %d entries", len(out), len(s.entries))
	return out, nil
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Save writes the store in the vectorstore document format.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	entries := slices.Clone(s.entries)
	s.mu.RUnlock()
	return vectorstore.WriteFile(path, entries, s.indent)
}

// Load replaces the store contents with the document at path.
func (s *Store) Load(path string) error {
	entries, err := vectorstore.ReadFile(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reset(); err != nil {
		return err
	}
	ctx := context.Background()
	for _, e := range entries {
		if err := s.add(ctx, e); err != nil {
			return err
		}
	}
	s.logger.Printf("[CHROMEM] Loaded %d entries from %s", len(entries), path)
	return nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// contentOf returns the document text stored under "text", if any.
func contentOf(metadata map[string]any) string {
	if text, ok := metadata["text"].(string); ok {
		return text
	}
	return ""
}

// stringMetadata converts metadata to chromem's string map.
func stringMetadata(metadata map[string]any) map[string]string {
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = metadataString(v)
	}
	return out
}

func metadataString(v any) string {
	if str, ok := v.(string); ok {
		return str
	}
	// Convert to JSON for non-string values
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}

func matches(metadata map[string]any, where map[string]string) bool {
	for k, want := range where {
		v, ok := metadata[k]
		if !ok || metadataString(v) != want {
			return false
		}
	}
	return true
}
