// Package vectorstore stores (id, vector, metadata) entries and answers
// nearest-neighbour queries by exact cosine similarity.
//
// Stores persist to a single JSON document that maps each id to a
// two-element array holding the vector and the metadata object:
//
//	{"doc1": [[0.1, 0.2, 0.3], {"text": "hello"}], "doc2": [[...], {...}]}
//
// Keys are written in insertion order and read back in document order, so
// the order used to break score ties survives a save and load.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidDocument is returned when a saved store cannot be decoded.
var ErrInvalidDocument = errors.New("invalid vector store document")

// Result is one search hit.
type Result struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Entry is one stored item.
type Entry struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// Store is implemented by vector store backends.
type Store interface {
	// Add inserts an entry or replaces the one with the same id.
	// Vectors are not normalized and dimensions are not checked.
	Add(ctx context.Context, id string, vector []float32, metadata map[string]any) error

	// SimilaritySearch returns at most topK entries ordered by descending
	// cosine similarity to query. An empty store yields no results.
	SimilaritySearch(ctx context.Context, query []float32, topK int) ([]Result, error)

	// Save writes every entry to path.
	Save(path string) error

	// Load replaces the store contents with the entries saved at path.
	Load(path string) error

	// Len returns the number of entries.
	Len() int
}

// DimensionError reports a query whose length differs from a stored vector.
type DimensionError struct {
	ID    string
	Query int
	Entry int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: query has %d, entry %q has %d", e.Query, e.ID, e.Entry)
}
