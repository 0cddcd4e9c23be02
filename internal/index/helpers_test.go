package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semidx/internal/embed"
	"github.com/Aman-CERP/semidx/internal/errors"
	"github.com/Aman-CERP/semidx/internal/fingerprint"
	"github.com/Aman-CERP/semidx/internal/store"
)

// flakyEmbedder wraps StaticEmbedder, counts calls and fails any batch
// containing a text marked with failOn.
type flakyEmbedder struct {
	*embed.StaticEmbedder
	calls atomic.Int64
	texts atomic.Int64

	mu     sync.Mutex
	failOn map[string]bool
}

func newFlakyEmbedder() *flakyEmbedder {
	return &flakyEmbedder{StaticEmbedder: embed.NewStaticEmbedder(16), failOn: map[string]bool{}}
}

func (f *flakyEmbedder) setFail(texts ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn = map[string]bool{}
	for _, t := range texts {
		f.failOn[t] = true
	}
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (f *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	f.texts.Add(int64(len(texts)))
	f.mu.Lock()
	for _, t := range texts {
		if f.failOn[t] {
			f.mu.Unlock()
			return nil, errors.New(errors.ErrCodeEmbeddingFailed, "refused "+t, nil)
		}
	}
	f.mu.Unlock()
	return f.StaticEmbedder.EmbedBatch(ctx, texts)
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

// newTestIndexer uses two-token chunks without overlap unless opts says
// otherwise.
func newTestIndexer(t *testing.T, s store.ChunkStore, e embed.Embedder, opts Options) *Indexer {
	t.Helper()
	if opts.ChunkSize == 0 {
		opts.ChunkSize = 2
	}
	tracker, err := fingerprint.New(fingerprint.Options{})
	require.NoError(t, err)
	ix, err := New(s, e, tracker, opts)
	require.NoError(t, err)
	return ix
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func chunkContents(t *testing.T, s store.ChunkStore, path string) []string {
	t.Helper()
	var out []string
	for c, err := range s.AllChunks(context.Background(), nil) {
		require.NoError(t, err)
		if c.SourceFile == path {
			out = append(out, c.Content)
		}
	}
	return out
}
