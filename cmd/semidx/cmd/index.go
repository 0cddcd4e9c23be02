package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semidx/internal/errors"
	"github.com/Aman-CERP/semidx/internal/output"
	"github.com/Aman-CERP/semidx/internal/ui"
)

// indexOptions holds CLI flags for index.
type indexOptions struct {
	include []string
	exclude []string
	meta    []string
	force   bool
	workers int
}

func newIndexCmd(st *cliState) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index or refresh the files under a directory",
		Long: `Index the files under path (default: the project root).

Only files whose content changed since the last run are re-chunked and
re-embedded. Indexed files that were deleted, or no longer match the
include/exclude patterns, are removed from the index.

Examples:
  semidx index
  semidx index docs --include "**/*.md"
  semidx index --exclude "vendor/**" --meta team=platform
  semidx index --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := st.root
			if len(args) == 1 {
				dir = args[0]
			}
			return runIndex(cmd.Context(), cmd, st, dir, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.include, "include", nil, "Only index files matching these globs (adds to config)")
	cmd.Flags().StringSliceVar(&opts.exclude, "exclude", nil, "Skip files matching these globs (adds to config)")
	cmd.Flags().StringArrayVar(&opts.meta, "meta", nil, "Attach key=value metadata to every chunk (repeatable)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Clear the index and re-embed everything")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Files indexed concurrently (default from config)")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, st *cliState, dir string, opts indexOptions) error {
	out := output.New(cmd.OutOrStdout())

	meta, err := parseMetadata(opts.meta)
	if err != nil {
		return err
	}

	ws, err := st.openWorkspace(ctx, openOptions{embeddings: true})
	if err != nil {
		return err
	}
	defer ws.Close()

	if err := ws.lock.TryLock(); err != nil {
		return err
	}

	if opts.force {
		if err := ws.indexer.Clear(ctx); err != nil {
			return err
		}
		out.Warning("Cleared existing index")
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return errors.New(errors.ErrCodeInvalidPath, "resolve index path", err)
	}

	syncOpts := st.cfg.SyncOptions()
	syncOpts.Include = append(syncOpts.Include, opts.include...)
	syncOpts.Exclude = append(syncOpts.Exclude, opts.exclude...)
	if opts.workers > 0 {
		syncOpts.Workers = opts.workers
	}
	syncOpts.Metadata = meta
	syncOpts.Progress = func(done, total int) {
		out.Progress(done, total, "Embedding changed files")
	}

	out.Statusf("🔍", "Indexing %s with %s", absDir, ws.indexer.EmbedderModel())
	res, err := ws.indexer.SyncDirectory(ctx, absDir, syncOpts)
	if err != nil {
		return err
	}
	ui.NewRenderer(cmd.OutOrStdout()).Sync(res)

	st.logger.Info("index_command_completed",
		slog.String("root", absDir),
		slog.Int("indexed", res.Indexed),
		slog.Int("failed", len(res.Failed)))

	if n := len(res.Failed); n > 0 {
		return fmt.Errorf("%d of %d changed files failed to index", n, n+res.Indexed)
	}
	return nil
}

// parseMetadata turns key=value flags into chunk metadata. Values are kept as
// strings.
func parseMetadata(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.New(errors.ErrCodeInvalidMetadata,
				fmt.Sprintf("invalid metadata %q", p), nil).
				WithSuggestion("use --meta key=value")
		}
		meta[key] = value
	}
	return meta, nil
}
