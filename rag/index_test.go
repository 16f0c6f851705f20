package rag_test

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/chat-go-sdk/embedding/mock"
	"github.com/becomeliminal/chat-go-sdk/rag"
	"github.com/becomeliminal/chat-go-sdk/vectorstore"
)

func TestIndexAssignsIDsAndText(t *testing.T) {
	ctx := context.Background()
	emb := mock.New(mock.WithDimensions(8))
	store := vectorstore.NewMemoryStore()
	e, err := rag.New(&echoAsker{model: "x"}, emb, store)
	require.NoError(t, err)

	ids, err := e.Index(ctx,
		rag.Document{Text: "first", Metadata: map[string]any{"lang": "en"}},
		rag.Document{ID: "fixed", Text: "second"},
	)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	_, err = uuid.Parse(ids[0])
	assert.NoError(t, err)
	assert.Equal(t, "fixed", ids[1])
	assert.Equal(t, 1, emb.Calls())

	entries := store.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, map[string]any{"lang": "en", "text": "first"}, entries[0].Metadata)
	assert.Equal(t, "second", entries[1].Metadata["text"])
}

func TestIndexDoesNotMutateMetadata(t *testing.T) {
	meta := map[string]any{"k": "v"}
	e, err := rag.New(&echoAsker{model: "x"}, mock.New(), vectorstore.NewMemoryStore())
	require.NoError(t, err)

	_, err = e.Index(context.Background(), rag.Document{ID: "a", Text: "t", Metadata: meta})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, meta)
}

func TestIndexEmpty(t *testing.T) {
	emb := mock.New()
	e, err := rag.New(&echoAsker{model: "x"}, emb, vectorstore.NewMemoryStore())
	require.NoError(t, err)

	ids, err := e.Index(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Zero(t, emb.Calls())
}

func TestChunk(t *testing.T) {
	chunks, err := rag.Chunk("   \n ", 10, 2)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = rag.Chunk("short text", 100, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"short text"}, chunks)

	long := strings.Repeat("word ", 100)
	chunks, err = rag.Chunk(long, 50, 10)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	total := 0
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 50)
		total += strings.Count(c, "word")
	}
	assert.GreaterOrEqual(t, total, 100)

	_, err = rag.Chunk("text", 0, 0)
	assert.Error(t, err)
}

func TestChunkDocument(t *testing.T) {
	docs, err := rag.ChunkDocument(rag.Document{
		ID:       "manual",
		Text:     strings.Repeat("alpha beta gamma ", 20),
		Metadata: map[string]any{"title": "Manual"},
	}, 40, 0)
	require.NoError(t, err)
	require.Greater(t, len(docs), 1)

	for n, d := range docs {
		assert.Equal(t, "manual#"+strconv.Itoa(n), d.ID)
		assert.Equal(t, "manual", d.Metadata["source"])
		assert.Equal(t, n, d.Metadata["chunk"])
		assert.Equal(t, "Manual", d.Metadata["title"])
	}
}
