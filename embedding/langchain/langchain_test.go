package langchain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/embeddings"

	"github.com/becomeliminal/chat-go-sdk/core"
	"github.com/becomeliminal/chat-go-sdk/embedding/langchain"
)

type recorder struct {
	batches [][]string
	err     error
	short   bool
}

func (r *recorder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	r.batches = append(r.batches, append([]string(nil), texts...))
	if r.err != nil {
		return nil, r.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, []float32{float32(len(text)), 1})
	}
	if r.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func TestEmbedBatchesInOrder(t *testing.T) {
	rec := &recorder{}
	e, err := langchain.New("test", "m", rec, embeddings.WithBatchSize(2))
	require.NoError(t, err)

	vecs, err := e.Embed(context.Background(), "a", "bb", "ccc", "dddd", "eeeee")
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	for i, v := range vecs {
		assert.Equal(t, float32(i+1), v[0])
	}
	assert.Len(t, rec.batches, 3)
	assert.Equal(t, "m", e.Model())
}

func TestEmbedDoesNotMutateInput(t *testing.T) {
	rec := &recorder{}
	e, err := langchain.New("test", "m", rec)
	require.NoError(t, err)

	texts := []string{"line one\nline two"}
	_, err = e.Embed(context.Background(), texts...)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", texts[0])
	assert.Equal(t, "line one line two", rec.batches[0][0])
}

func TestEmbedEmpty(t *testing.T) {
	rec := &recorder{}
	e, err := langchain.New("test", "m", rec)
	require.NoError(t, err)

	vecs, err := e.Embed(context.Background())
	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.Empty(t, rec.batches)
}

func TestEmbedErrors(t *testing.T) {
	e, err := langchain.New("test", "m", &recorder{err: errors.New("429 Too Many Requests")})
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, core.ErrQuotaExceeded)

	e, err = langchain.New("test", "m", &recorder{short: true})
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), "x", "y")
	assert.ErrorIs(t, err, core.ErrRequestFailed)
}

func TestMissingKeys(t *testing.T) {
	_, err := langchain.NewOpenAI("", "", "")
	assert.ErrorIs(t, err, core.ErrConfiguration)
	_, err = langchain.NewGemini(context.Background(), "", "")
	assert.ErrorIs(t, err, core.ErrConfiguration)
	_, err = langchain.NewMistral("")
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestNewOpenAI(t *testing.T) {
	e, err := langchain.NewOpenAI("sk-test", "", "http://127.0.0.1:1/v1")
	require.NoError(t, err)
	assert.Equal(t, langchain.DefaultOpenAIModel, e.Model())
}
