package embed

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/Aman-CERP/semidx/internal/errors"
)

// countingEmbedder wraps StaticEmbedder, counts calls and can fail the
// first failures calls with a retryable provider error.
type countingEmbedder struct {
	*StaticEmbedder
	calls    atomic.Int64
	texts    atomic.Int64
	failures int64
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{StaticEmbedder: NewStaticEmbedder(16)}
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	n := c.calls.Add(1)
	c.texts.Add(int64(len(texts)))
	if n <= c.failures {
		return nil, errors.New(errors.ErrCodeProviderUnavailable, "provider down", nil)
	}
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
