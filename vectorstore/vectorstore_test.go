package vectorstore_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/chat-go-sdk/vectorstore"
)

func TestCosineSimilarity(t *testing.T) {
	v := []float32{0.3, -1.2, 4.5}
	assert.InDelta(t, 1.0, vectorstore.CosineSimilarity(v, v), 1e-9)
	assert.InDelta(t, -1.0, vectorstore.CosineSimilarity(v, []float32{-0.3, 1.2, -4.5}), 1e-9)
	assert.InDelta(t, 0.0, vectorstore.CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-12)

	zero := []float32{0, 0, 0}
	assert.Equal(t, 0.0, vectorstore.CosineSimilarity(v, zero))
	assert.Equal(t, 0.0, vectorstore.CosineSimilarity(zero, v))
	assert.Equal(t, 0.0, vectorstore.CosineSimilarity(zero, zero))
	assert.False(t, math.IsNaN(vectorstore.CosineSimilarity(zero, zero)))

	assert.Equal(t, 0.0, vectorstore.CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
}

func threeEntryStore(t *testing.T) *vectorstore.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := vectorstore.NewMemoryStore()
	require.NoError(t, s.Add(ctx, "x", []float32{1, 0, 0}, map[string]any{"text": "about x"}))
	require.NoError(t, s.Add(ctx, "y", []float32{0, 1, 0}, map[string]any{"text": "about y"}))
	require.NoError(t, s.Add(ctx, "xy", []float32{1, 1, 0}, map[string]any{"text": "about xy"}))
	return s
}

func TestSimilaritySearchExactMatchFirst(t *testing.T) {
	s := threeEntryStore(t)

	results, err := s.SimilaritySearch(context.Background(), []float32{0, 1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "y", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "about y", results[0].Metadata["text"])
	assert.Equal(t, "xy", results[1].ID)
	assert.Equal(t, "x", results[2].ID)
	assert.Equal(t, 0.0, results[2].Score)
}

func TestSimilaritySearchLimits(t *testing.T) {
	ctx := context.Background()

	empty := vectorstore.NewMemoryStore()
	for _, k := range []int{-1, 0, 1, 10} {
		results, err := empty.SimilaritySearch(ctx, []float32{1, 2, 3}, k)
		require.NoError(t, err)
		assert.Empty(t, results)
	}

	s := threeEntryStore(t)
	for k, want := range map[int]int{-1: 0, 0: 0, 1: 1, 2: 2, 3: 3, 50: 3} {
		results, err := s.SimilaritySearch(ctx, []float32{1, 0, 0}, k)
		require.NoError(t, err)
		assert.Len(t, results, want, "top_k=%d", k)
	}
}

func TestSimilaritySearchTiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.NewMemoryStore()
	for _, id := range []string{"c", "a", "d", "b"} {
		require.NoError(t, s.Add(ctx, id, []float32{2, 2}, nil))
	}

	results, err := s.SimilaritySearch(ctx, []float32{1, 1}, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "d", "b"}, ids(results))
}

func TestAddUpsertKeepsPosition(t *testing.T) {
	ctx := context.Background()
	s := threeEntryStore(t)

	require.NoError(t, s.Add(ctx, "x", []float32{0, 0, 1}, map[string]any{"text": "new x"}))
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"x", "y", "xy"}, entryIDs(s.Entries()))

	results, err := s.SimilaritySearch(ctx, []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].ID)
	assert.Equal(t, "new x", results[0].Metadata["text"])
}

func TestAddCopiesInput(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.NewMemoryStore()
	vec := []float32{1, 0}
	meta := map[string]any{"text": "original"}
	require.NoError(t, s.Add(ctx, "a", vec, meta))

	vec[0] = 0
	meta["text"] = "changed"

	results, err := s.SimilaritySearch(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "original", results[0].Metadata["text"])
}

func TestSimilaritySearchDimensionMismatch(t *testing.T) {
	s := threeEntryStore(t)

	_, err := s.SimilaritySearch(context.Background(), []float32{1, 0}, 2)
	var dimErr *vectorstore.DimensionError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 2, dimErr.Query)
	assert.Equal(t, 3, dimErr.Entry)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, indent := range []bool{false, true} {
		s := vectorstore.NewMemoryStore(vectorstore.WithIndent(indent))
		require.NoError(t, s.Add(ctx, "tie-2", []float32{0.5, 0.5}, map[string]any{"text": "two"}))
		require.NoError(t, s.Add(ctx, "tie-1", []float32{0.5, 0.5}, map[string]any{"text": "one", "page": 3}))
		require.NoError(t, s.Add(ctx, "far", []float32{-0.25, 0.75}, map[string]any{"text": "far"}))

		path := filepath.Join(t.TempDir(), "store.json")
		require.NoError(t, s.Save(path))

		loaded := vectorstore.NewMemoryStore()
		require.NoError(t, loaded.Load(path))
		assert.Equal(t, s.Len(), loaded.Len())

		for _, q := range [][]float32{{1, 1}, {-1, 2}, {0.1, -0.3}} {
			want, err := s.SimilaritySearch(ctx, q, 3)
			require.NoError(t, err)
			got, err := loaded.SimilaritySearch(ctx, q, 3)
			require.NoError(t, err)

			assert.Equal(t, ids(want), ids(got))
			for i := range want {
				assert.InDelta(t, want[i].Score, got[i].Score, 1e-12)
				assert.Equal(t, want[i].Metadata["text"], got[i].Metadata["text"])
			}
		}

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, indent, strings.Contains(string(data), "\n    "))
	}
}

func TestLoadKeepsStoreOnError(t *testing.T) {
	s := threeEntryStore(t)
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a": [1, 2, 3]}`), 0o644))

	err := s.Load(path)
	require.ErrorIs(t, err, vectorstore.ErrInvalidDocument)
	assert.Equal(t, 3, s.Len())
}

func TestDecode(t *testing.T) {
	entries, err := vectorstore.Decode(strings.NewReader(`{"b": [[1, 2], {"text": "b"}], "a": [[3, 4], {}], "b": [[5, 6], {"v": 2}]}`))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].ID)
	assert.Equal(t, []float32{5, 6}, entries[0].Vector)
	assert.Equal(t, "a", entries[1].ID)

	bad := []string{
		`[]`,
		`{"a": [[1], {}, 3]}`,
		`{"a": ["x", {}]}`,
		`{"a": [[1], "meta"]}`,
		`{"a": [[1], {}]`,
	}
	for _, doc := range bad {
		_, err := vectorstore.Decode(strings.NewReader(doc))
		assert.ErrorIs(t, err, vectorstore.ErrInvalidDocument, doc)
	}
}

func ids(results []vectorstore.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func entryIDs(entries []vectorstore.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
