package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/semidx/internal/index"
	"github.com/Aman-CERP/semidx/internal/output"
	"github.com/Aman-CERP/semidx/internal/ui"
	"github.com/Aman-CERP/semidx/internal/watcher"
)

// watchOptions holds CLI flags for watch.
type watchOptions struct {
	skipInitial bool
	meta        []string
}

func newWatchCmd(st *cliState) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the index in sync with the project as files change",
		Long: `Sync the project once, then watch it and re-index files as they are
created or modified. Deleted and renamed files are removed from the index.

Events are debounced (watch.debounce in config). Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd, st, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.skipInitial, "skip-initial", false, "Do not sync the project before watching")
	cmd.Flags().StringArrayVar(&opts.meta, "meta", nil, "Attach key=value metadata to every chunk (repeatable)")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, st *cliState, opts watchOptions) error {
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

	// Watch before the initial sync so changes made during it are not lost.
	w, err := watcher.New(st.cfg.WatchOptions())
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()
	if err := w.Watch(ws.root); err != nil {
		return err
	}

	if !opts.skipInitial {
		syncOpts := st.cfg.SyncOptions()
		syncOpts.Metadata = meta
		res, err := ws.indexer.SyncDirectory(ctx, ws.root, syncOpts)
		if err != nil {
			return err
		}
		ui.NewRenderer(cmd.OutOrStdout()).Sync(res)
	}

	coordCfg := st.cfg.CoordinatorConfig()
	coordCfg.Root = ws.root
	coordCfg.Metadata = meta
	coord := index.NewCoordinator(ws.indexer, coordCfg)

	out.Statusf("👀", "Watching %s (Ctrl+C to stop)", ws.root)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx)
	})
	g.Go(func() error {
		return coord.Run(gctx, w.Events())
	})
	g.Go(func() error {
		for err := range w.Errors() {
			st.logger.Warn("watch_error", slog.String("error", err.Error()))
			out.Warning(err.Error())
		}
		return nil
	})

	err = g.Wait()
	if ctx.Err() != nil {
		out.Newline()
		out.Success("Stopped watching")
		return nil
	}
	return err
}
