package embed

import (
	"context"

	"github.com/Aman-CERP/semidx/internal/errors"
)

// RetryingEmbedder retries retryable provider failures with exponential
// backoff. It is opt-in at the composition root; the index itself never
// retries.
type RetryingEmbedder struct {
	inner Embedder
	cfg   errors.RetryConfig
}

var _ Embedder = (*RetryingEmbedder)(nil)

// NewRetryingEmbedder wraps inner. Only errors in the embedding provider
// category are retried.
func NewRetryingEmbedder(inner Embedder, cfg errors.RetryConfig) *RetryingEmbedder {
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = func(err error) bool {
			return errors.IsCategory(err, errors.CategoryEmbeddingProvider) && errors.IsRetryable(err)
		}
	}
	return &RetryingEmbedder{inner: inner, cfg: cfg}
}

// Embed implements Embedder.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return errors.RetryWithResult(ctx, r.cfg, func() ([]float32, error) {
		return r.inner.Embed(ctx, text)
	})
}

// EmbedBatch implements Embedder.
func (r *RetryingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return errors.RetryWithResult(ctx, r.cfg, func() ([][]float32, error) {
		return r.inner.EmbedBatch(ctx, texts)
	})
}

// Dimensions implements Embedder.
func (r *RetryingEmbedder) Dimensions() int { return r.inner.Dimensions() }

// ModelName implements Embedder.
func (r *RetryingEmbedder) ModelName() string { return r.inner.ModelName() }

// Available implements Embedder.
func (r *RetryingEmbedder) Available(ctx context.Context) bool { return r.inner.Available(ctx) }

// Close implements Embedder.
func (r *RetryingEmbedder) Close() error { return r.inner.Close() }
