// Package mock provides a deterministic embedder for tests and offline use.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync/atomic"

	"github.com/becomeliminal/chat-go-sdk/embedding"
)

// DefaultDimensions is the vector length produced by New.
const DefaultDimensions = 128

// Embedder derives a unit vector from a hash of each text, so equal texts
// always embed identically and distinct texts almost never collide.
type Embedder struct {
	dimensions int
	fixed      map[string][]float32
	calls      atomic.Int64
	texts      atomic.Int64
}

// Ensure Embedder implements embedding.Embedder.
var _ embedding.Embedder = (*Embedder)(nil)

// Option configures the mock embedder.
type Option func(*Embedder)

// WithDimensions sets the vector length.
func WithDimensions(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			e.dimensions = n
		}
	}
}

// WithVector pins the vector returned for text. Useful for building exact
// retrieval fixtures.
func WithVector(text string, vec []float32) Option {
	return func(e *Embedder) {
		e.fixed[text] = append([]float32(nil), vec...)
	}
}

// New creates a mock embedder.
func New(opts ...Option) *Embedder {
	e := &Embedder{dimensions: DefaultDimensions, fixed: make(map[string][]float32)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed implements embedding.Embedder.
func (e *Embedder) Embed(ctx context.Context, texts ...string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.calls.Add(1)
	e.texts.Add(int64(len(texts)))

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := e.fixed[text]; ok {
			out[i] = append([]float32(nil), v...)
			continue
		}
		out[i] = e.hashVector(text)
	}
	return out, nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Calls reports how many times Embed ran.
func (e *Embedder) Calls() int {
	return int(e.calls.Load())
}

// Texts reports how many texts were embedded in total.
func (e *Embedder) Texts() int {
	return int(e.texts.Load())
}

func (e *Embedder) hashVector(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, e.dimensions)
	for i := range vec {
		// LCG step, mapped to [-1, 1].
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec)
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}
