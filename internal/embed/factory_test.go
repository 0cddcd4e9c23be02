package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semidx/internal/errors"
)

func TestNewEmbedder_StaticWithCache(t *testing.T) {
	e, err := NewEmbedder(context.Background(), Config{Provider: ProviderStatic, Dimensions: 64})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.IsType(t, &CachedEmbedder{}, e)
	assert.Equal(t, 64, e.Dimensions())
}

func TestNewEmbedder_CacheDisabledAndRetries(t *testing.T) {
	e, err := NewEmbedder(context.Background(), Config{Provider: ProviderStatic, CacheSize: -1, MaxRetries: 2})
	require.NoError(t, err)

	assert.IsType(t, &RetryingEmbedder{}, e)
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	_, err := NewEmbedder(context.Background(), Config{Provider: "mlx"})

	assert.True(t, errors.IsCategory(err, errors.CategoryConfig))
}
