package search

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semidx/internal/errors"
	"github.com/Aman-CERP/semidx/internal/store"
)

// fakeEmbedder returns fixed vectors per text, or err when set.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   atomic.Int64
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.vectors[text]
	if !ok {
		return nil, errors.New(errors.ErrCodeEmbeddingFailed, fmt.Sprintf("no vector for %q", text), nil)
	}
	return v, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int                { return 2 }
func (f *fakeEmbedder) ModelName() string              { return "fake" }
func (f *fakeEmbedder) Available(context.Context) bool { return f.err == nil }
func (f *fakeEmbedder) Close() error                   { return nil }

// unitAt returns a 2-d unit vector whose cosine with [1, 0] is sim.
func unitAt(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func backends(t *testing.T) map[string]store.ChunkStore {
	t.Helper()
	mem := store.NewMemoryStore()
	lite, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "index.db"), store.DriverModernc, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = mem.Close()
		_ = lite.Close()
	})
	return map[string]store.ChunkStore{"memory": mem, "sqlite": lite}
}

// addFile stores one chunk per vector under path.
func addFile(t *testing.T, s store.ChunkStore, path string, vectors ...[]float32) {
	t.Helper()
	now := time.Now()
	chunks := make([]*store.Chunk, len(vectors))
	for i, v := range vectors {
		chunks[i] = &store.Chunk{
			ID:          fmt.Sprintf("%s#%d", path, i),
			SourceFile:  path,
			Content:     fmt.Sprintf("%s part %d", path, i),
			ChunkIndex:  i,
			Embedding:   v,
			IndexedAt:   now,
			ContentHash: "h-" + path,
		}
	}
	fp := &store.FileFingerprint{FilePath: path, ContentHash: "h-" + path, FileSize: 1, LastModified: now, LastChecked: now}
	require.NoError(t, s.ReplaceFile(context.Background(), path, chunks, fp))
}

func sources(results []*SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Chunk.SourceFile
	}
	return out
}
