package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/Aman-CERP/semidx/internal/embed"
	"github.com/Aman-CERP/semidx/internal/errors"
	"github.com/Aman-CERP/semidx/internal/store"
)

// Engine scores a query against every stored embedding.
type Engine struct {
	store    store.ChunkStore
	embedder embed.Embedder
	logger   *slog.Logger
}

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithLogger sets the logger used for search events.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a search engine over s using embedder for queries.
func NewEngine(s store.ChunkStore, embedder embed.Embedder, opts ...EngineOption) (*Engine, error) {
	if s == nil {
		return nil, errors.InternalError("search engine: chunk store is required", nil)
	}
	if embedder == nil {
		return nil, errors.InternalError("search engine: embedder is required", nil)
	}
	e := &Engine{store: s, embedder: embedder, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search embeds q.Text and returns at most q.TopK results ordered by
// descending similarity. A provider failure fails the whole search.
func (e *Engine) Search(ctx context.Context, q Query) ([]*SearchResult, error) {
	results, _, err := e.SearchWithStats(ctx, q)
	return results, err
}

// SearchWithStats is Search that also reports how many chunks were scanned
// and matched.
func (e *Engine) SearchWithStats(ctx context.Context, q Query) ([]*SearchResult, *Stats, error) {
	start := time.Now()

	q, err := normalize(q)
	if err != nil {
		return nil, nil, err
	}

	queryVec, err := e.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, nil, queryEmbedErr(ctx, err)
	}
	if len(queryVec) == 0 {
		return nil, nil, errors.EmbeddingProviderError("embedding provider returned an empty query vector", nil)
	}
	if err := e.checkDimensions(ctx, len(queryVec)); err != nil {
		return nil, nil, err
	}

	stats := &Stats{}
	var results []*SearchResult
	for c, err := range e.store.AllChunks(ctx, q.FileFilters) {
		if err != nil {
			return nil, nil, err
		}
		stats.Scanned++
		sim := CosineSimilarity(queryVec, c.Embedding)
		if sim < q.MinSimilarity {
			continue
		}
		results = append(results, &SearchResult{Chunk: c, Similarity: sim})
	}
	stats.Matched = len(results)

	// Stable: equal scores stay in insertion order.
	slices.SortStableFunc(results, func(a, b *SearchResult) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	if len(results) > q.TopK {
		results = results[:q.TopK]
	}
	stats.Returned = len(results)

	e.logger.Debug("search_completed",
		slog.Int("top_k", q.TopK),
		slog.Float64("min_similarity", q.MinSimilarity),
		slog.Int("filters", len(q.FileFilters)),
		slog.Int("scanned", stats.Scanned),
		slog.Int("matched", stats.Matched),
		slog.Int("returned", stats.Returned),
		slog.Duration("duration", time.Since(start)))

	return results, stats, nil
}

// checkDimensions rejects a query vector whose length differs from the
// stored embeddings, which happens when the provider model changed since
// indexing. Every score would otherwise silently be 0.
func (e *Engine) checkDimensions(ctx context.Context, dims int) error {
	st, err := e.store.Stats(ctx)
	if err != nil {
		return err
	}
	if st.Dimensions == 0 || st.Dimensions == dims {
		return nil
	}
	return errors.New(errors.ErrCodeDimensionMismatch,
		fmt.Sprintf("query embedding has %d dimensions but the index stores %d", dims, st.Dimensions), nil).
		WithDetail("model", e.embedder.ModelName()).
		WithSuggestion("use the embedding model the index was built with, or run 'semidx clear' and re-index")
}

func normalize(q Query) (Query, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return q, errors.New(errors.ErrCodeQueryEmpty, "search query is empty", nil)
	}
	switch {
	case q.TopK == 0:
		q.TopK = DefaultTopK
	case q.TopK < 0:
		return q, errors.ValidationError(fmt.Sprintf("top_k must be positive, got %d", q.TopK), nil)
	}
	if math.IsNaN(q.MinSimilarity) {
		return q, errors.ValidationError("min_similarity must be a number", nil)
	}

	var filters []string
	for _, f := range q.FileFilters {
		if f = strings.TrimSpace(f); f != "" {
			filters = append(filters, f)
		}
	}
	q.FileFilters = filters
	return q, nil
}

// queryEmbedErr reports every non-cancellation failure of the query
// embedding as a provider error.
func queryEmbedErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.IsCategory(err, errors.CategoryEmbeddingProvider) {
		return err
	}
	return errors.EmbeddingProviderError("embed search query", err)
}
