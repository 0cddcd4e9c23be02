package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semidx/internal/config"
	"github.com/Aman-CERP/semidx/internal/embed"
	"github.com/Aman-CERP/semidx/internal/fingerprint"
	"github.com/Aman-CERP/semidx/internal/index"
	"github.com/Aman-CERP/semidx/internal/store"
)

// testConfig returns the defaults with an offline embedder and the given
// sqlite driver.
func testConfig(driver string) *config.Config {
	cfg := config.NewConfig()
	cfg.Embeddings.Provider = string(embed.ProviderStatic)
	cfg.Embeddings.Dimensions = 64
	cfg.Storage.Driver = driver
	return cfg
}

// stack is an indexer wired the way the CLI wires it.
type stack struct {
	ix    *index.Indexer
	store store.ChunkStore
}

func (s *stack) Close() error {
	return s.store.Close()
}

func openStack(t *testing.T, cfg *config.Config, root string) *stack {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.IndexPath(root)), 0o755))
	s, err := store.Open(cfg.StoreOptions(root, nil))
	require.NoError(t, err)

	e, err := embed.NewEmbedder(ctx, cfg.EmbedConfig())
	require.NoError(t, err)

	tracker, err := fingerprint.New(cfg.TrackerOptions())
	require.NoError(t, err)

	ix, err := index.New(s, e, tracker, cfg.IndexOptions(nil))
	require.NoError(t, err)
	return &stack{ix: ix, store: s}
}

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
