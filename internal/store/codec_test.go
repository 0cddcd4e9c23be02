package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingCodec_RoundTripIsBitExact(t *testing.T) {
	vectors := map[string][]float32{
		"empty":     {},
		"simple":    {0.1, -0.2, 0.3},
		"extremes":  {math.MaxFloat32, -math.MaxFloat32, math.SmallestNonzeroFloat32},
		"infinites": {float32(math.Inf(1)), float32(math.Inf(-1))},
		"zeros":     {0, float32(math.Copysign(0, -1))},
		"nan":       {math.Float32frombits(0x7fc00001), math.Float32frombits(0xffc00000)},
	}

	for name, v := range vectors {
		t.Run(name, func(t *testing.T) {
			blob := EncodeEmbedding(v)
			require.Len(t, blob, 4*len(v))

			got, err := DecodeEmbedding(blob)

			require.NoError(t, err)
			require.Len(t, got, len(v))
			for i := range v {
				assert.Equal(t, math.Float32bits(v[i]), math.Float32bits(got[i]), "element %d", i)
			}
		})
	}
}

func TestDecodeEmbedding_RejectsTruncatedBlob(t *testing.T) {
	_, err := DecodeEmbedding([]byte{1, 2, 3, 4, 5})

	assert.Error(t, err)
}

func TestMetadataCodec(t *testing.T) {
	raw, err := encodeMetadata(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", raw)

	raw, err = encodeMetadata(map[string]any{"file_name": "a.txt", "total_chunks": 2, "draft": true})
	require.NoError(t, err)

	got, err := decodeMetadata(raw)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"file_name": "a.txt", "total_chunks": float64(2), "draft": true}, got)

	_, err = decodeMetadata("{not json")
	assert.Error(t, err)
}

func TestMatchesFilters(t *testing.T) {
	filters := lowerFilters([]string{"", "Docs/", "README"})

	assert.True(t, matchesFilters("docs/guide.md", filters))
	assert.True(t, matchesFilters("src/readme.txt", filters))
	assert.False(t, matchesFilters("src/main.go", filters))
	assert.True(t, matchesFilters("anything", lowerFilters([]string{""})))
}
