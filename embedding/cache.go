package embedding

import (
	"context"
	"fmt"
	"slices"

	"github.com/dgraph-io/ristretto"
)

// DefaultCacheBytes bounds the vectors held by a Cached embedder.
const DefaultCacheBytes = 64 << 20

// Cached memoizes another Embedder in a ristretto cache. Only texts not
// already cached are sent to the wrapped embedder, once per distinct text.
type Cached struct {
	inner     Embedder
	namespace string
	cache     *ristretto.Cache
}

// Ensure Cached implements Embedder.
var _ Embedder = (*Cached)(nil)

// NewCached wraps inner. namespace separates keys of different models that
// share a process; maxBytes <= 0 means DefaultCacheBytes.
func NewCached(inner Embedder, namespace string, maxBytes int64) (*Cached, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultCacheBytes
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxBytes / 64,
		MaxCost:            maxBytes,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Cached{inner: inner, namespace: namespace, cache: cache}, nil
}

// Embed returns cached vectors where available and embeds the rest.
func (c *Cached) Embed(ctx context.Context, texts ...string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var missing []string
	pending := make(map[string][]int)
	for i, text := range texts {
		if v, ok := c.cache.Get(c.key(text)); ok {
			out[i] = slices.Clone(v.([]float32))
			continue
		}
		if _, seen := pending[text]; !seen {
			missing = append(missing, text)
		}
		pending[text] = append(pending[text], i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.inner.Embed(ctx, missing...)
	if err != nil {
		return nil, err
	}
	if err := CheckCount(missing, vectors); err != nil {
		return nil, err
	}

	for j, text := range missing {
		vec := vectors[j]
		c.cache.Set(c.key(text), slices.Clone(vec), int64(4*len(vec)))
		for _, i := range pending[text] {
			out[i] = slices.Clone(vec)
		}
	}
	// Make the new entries visible to the next call.
	c.cache.Wait()
	return out, nil
}

// Close releases the cache.
func (c *Cached) Close() {
	c.cache.Close()
}

func (c *Cached) key(text string) string {
	return c.namespace + "\x00" + text
}
