package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semidx/internal/errors"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder(0)
	ctx := context.Background()

	a, err := e.Embed(ctx, "vector databases store embeddings")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "vector databases store embeddings")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
	assert.Equal(t, StaticDimensions, e.Dimensions())
	assert.InDelta(t, 1.0, cosine(a, a), 1e-6)
}

func TestStaticEmbedder_SharedVocabularyScoresHigher(t *testing.T) {
	e := NewStaticEmbedder(128)
	ctx := context.Background()

	query, err := e.Embed(ctx, "incremental index fingerprint")
	require.NoError(t, err)
	related, err := e.Embed(ctx, "the index keeps a fingerprint per file for incremental updates")
	require.NoError(t, err)
	unrelated, err := e.Embed(ctx, "bananas grow in tropical climates")
	require.NoError(t, err)

	assert.Greater(t, cosine(query, related), cosine(query, unrelated))
}

func TestStaticEmbedder_BlankTextIsZeroVector(t *testing.T) {
	e := NewStaticEmbedder(8)

	v, err := e.Embed(context.Background(), "  \n ")

	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), v)
}

func TestStaticEmbedder_BatchMatchesSingle(t *testing.T) {
	e := NewStaticEmbedder(32)
	ctx := context.Background()
	texts := []string{"alpha beta", "gamma", "delta epsilon zeta"}

	batch, err := e.EmbedBatch(ctx, texts)
	require.NoError(t, err)

	require.Len(t, batch, 3)
	for i, text := range texts {
		single, err := e.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestStaticEmbedder_Closed(t *testing.T) {
	e := NewStaticEmbedder(8)
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "x")

	assert.True(t, errors.IsCategory(err, errors.CategoryEmbeddingProvider))
	assert.False(t, e.Available(context.Background()))
}

func TestStaticEmbedder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStaticEmbedder(8).Embed(ctx, "x")

	assert.ErrorIs(t, err, context.Canceled)
}
