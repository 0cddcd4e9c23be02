// Package embed is the boundary to embedding providers. Vectors come from an
// external model service (Ollama or an OpenAI-compatible API) or from the
// offline hash-based StaticEmbedder.
package embed

import (
	"context"
	stderrors "errors"
	"math"
	"time"

	"github.com/Aman-CERP/semidx/internal/errors"
)

const (
	// DefaultBatchSize is the number of texts sent per provider request.
	DefaultBatchSize = 32

	// MaxBatchSize caps request size to bound memory.
	MaxBatchSize = 256

	// DefaultTimeout bounds a single provider request.
	DefaultTimeout = 60 * time.Second

	// StaticDimensions is the vector length of the StaticEmbedder.
	StaticDimensions = 256
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding of a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector length.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the provider can serve requests.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector scales v to unit length in place. Zero vectors are
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / magnitude)
	}
	return v
}

// providerErr classifies a failed provider call. Cancellation of the caller's
// context is passed through untouched.
func providerErr(ctx context.Context, code, message string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		code = errors.ErrCodeProviderTimeout
	}
	return errors.New(code, message, err)
}
