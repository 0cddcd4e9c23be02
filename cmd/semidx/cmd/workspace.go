package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/Aman-CERP/semidx/internal/embed"
	"github.com/Aman-CERP/semidx/internal/errors"
	"github.com/Aman-CERP/semidx/internal/fingerprint"
	"github.com/Aman-CERP/semidx/internal/index"
	"github.com/Aman-CERP/semidx/internal/store"
)

// workspace holds the components wired from the loaded configuration.
type workspace struct {
	root      string
	indexPath string
	store     store.ChunkStore
	lock      *store.WriteLock

	// Set only when opened with embeddings.
	embedder embed.Embedder
	indexer  *index.Indexer
}

type openOptions struct {
	// mustExist fails with a hint when the SQLite index has not been built.
	mustExist bool
	// embeddings builds the embedder and indexer. The Ollama provider probes
	// its server on construction, so commands that only touch stored data
	// leave this off.
	embeddings bool
}

// openWorkspace opens the project's index. Callers must Close the result.
func (st *cliState) openWorkspace(ctx context.Context, opts openOptions) (*workspace, error) {
	cfg := st.cfg
	ws := &workspace{
		root:      st.root,
		indexPath: cfg.IndexPath(st.root),
	}
	ws.lock = store.NewWriteLock(ws.indexPath)

	if opts.mustExist && cfg.Storage.Backend == store.BackendSQLite {
		if _, err := os.Stat(ws.indexPath); os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, "no index found", nil).
				WithDetail("path", ws.indexPath).
				WithSuggestion("run 'semidx index' first")
		}
	}

	s, err := store.Open(cfg.StoreOptions(st.root, st.logger))
	if err != nil {
		return nil, err
	}
	ws.store = s
	if !opts.embeddings {
		return ws, nil
	}

	e, err := embed.NewEmbedder(ctx, cfg.EmbedConfig())
	if err != nil {
		ws.Close()
		return nil, err
	}
	ws.embedder = e

	tracker, err := fingerprint.New(cfg.TrackerOptions())
	if err != nil {
		ws.Close()
		return nil, err
	}

	ix, err := index.New(s, e, tracker, cfg.IndexOptions(st.logger))
	if err != nil {
		ws.Close()
		return nil, err
	}
	ws.indexer = ix

	st.logger.Debug("workspace_opened",
		slog.String("index", ws.indexPath),
		slog.String("model", e.ModelName()))
	return ws, nil
}

// Close releases the lock if held and closes the embedder and store.
func (ws *workspace) Close() {
	_ = ws.lock.Unlock()
	if ws.embedder != nil {
		_ = ws.embedder.Close()
	}
	if ws.store != nil {
		_ = ws.store.Close()
	}
}
