package index

import (
	"context"
	stderrors "errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/semidx/internal/errors"
)

// embedAll embeds texts in EmbedBatchSize batches, EmbedConcurrency at a
// time. The result is index-aligned with texts whatever order the batches
// finish in. The first failure cancels the rest.
func (i *Indexer) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.opts.EmbedConcurrency)
	for start := 0; start < len(texts); start += i.opts.EmbedBatchSize {
		end := min(start+i.opts.EmbedBatchSize, len(texts))
		g.Go(func() error {
			out, err := i.embedder.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return embedErr(err)
			}
			if len(out) != end-start {
				return errors.EmbeddingProviderError(
					fmt.Sprintf("provider returned %d embeddings for %d chunks", len(out), end-start), nil)
			}
			for k, v := range out {
				if len(v) == 0 {
					return errors.EmbeddingProviderError(
						fmt.Sprintf("provider returned an empty embedding for chunk %d", start+k), nil)
				}
				vectors[start+k] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return vectors, nil
}

// embedErr keeps cancellation and already classified errors, and reports
// anything else as a provider failure.
func embedErr(err error) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.EmbeddingProviderError("embed chunks", err)
}
