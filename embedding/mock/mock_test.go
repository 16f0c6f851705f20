package mock_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/chat-go-sdk/embedding/mock"
)

func TestEmbedDeterministic(t *testing.T) {
	e := mock.New()
	ctx := context.Background()

	a, err := e.Embed(ctx, "hello", "world", "hello")
	require.NoError(t, err)
	require.Len(t, a, 3)
	assert.Equal(t, a[0], a[2])
	assert.NotEqual(t, a[0], a[1])

	b, err := mock.New().Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, a[0], b[0])
}

func TestEmbedUnitLength(t *testing.T) {
	vecs, err := mock.New(mock.WithDimensions(16)).Embed(context.Background(), "some text")
	require.NoError(t, err)
	require.Len(t, vecs[0], 16)

	var sum float64
	for _, v := range vecs[0] {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestWithVector(t *testing.T) {
	e := mock.New(mock.WithVector("pinned", []float32{1, 0}))
	vecs, err := e.Embed(context.Background(), "pinned")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vecs[0])

	vecs[0][0] = 9
	again, err := e.Embed(context.Background(), "pinned")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, again[0])
}

func TestCounters(t *testing.T) {
	e := mock.New()
	_, err := e.Embed(context.Background(), "a", "b")
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, 2, e.Calls())
	assert.Equal(t, 3, e.Texts())
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := mock.New().Embed(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
