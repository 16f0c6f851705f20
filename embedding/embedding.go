// Package embedding defines the text embedding contract used by the
// retrieval engine, plus a caching wrapper.
package embedding

import (
	"context"
	"fmt"
)

// Embedder turns texts into vectors.
//
// Embed returns exactly one vector per input text, in input order. For a
// given model the same text always yields a vector of the same length.
type Embedder interface {
	Embed(ctx context.Context, texts ...string) ([][]float32, error)
}

// Func adapts a function to Embedder.
type Func func(ctx context.Context, texts ...string) ([][]float32, error)

// Embed implements Embedder.
func (f Func) Embed(ctx context.Context, texts ...string) ([][]float32, error) {
	return f(ctx, texts...)
}

// One embeds a single text.
func One(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 text", len(vectors))
	}
	return vectors[0], nil
}

// CheckCount verifies that an embedder returned one vector per text.
func CheckCount(texts []string, vectors [][]float32) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	return nil
}
