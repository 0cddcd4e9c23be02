package cmd

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semidx/internal/errors"
	"github.com/Aman-CERP/semidx/internal/output"
)

func newRemoveCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <path>...",
		Aliases: []string{"rm"},
		Short:   "Remove files from the index",
		Long: `Remove the chunks and fingerprints of the given files. The files on
disk are not touched. Paths are resolved against the current directory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(cmd.Context(), cmd, st, args)
		},
	}
}

func runRemove(ctx context.Context, cmd *cobra.Command, st *cliState, paths []string) error {
	out := output.New(cmd.OutOrStdout())

	ws, err := st.openWorkspace(ctx, openOptions{mustExist: true})
	if err != nil {
		return err
	}
	defer ws.Close()

	if err := ws.lock.TryLock(); err != nil {
		return err
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return errors.New(errors.ErrCodeInvalidPath, "resolve path", err).WithDetail("path", p)
		}
		fp, err := ws.store.GetFingerprint(ctx, abs)
		if err != nil {
			return err
		}
		if fp == nil {
			out.Warningf("Not indexed: %s", abs)
			continue
		}
		if err := ws.store.RemoveFile(ctx, abs); err != nil {
			return err
		}
		st.logger.Info("index_file_removed", slog.String("path", abs), slog.Int("chunks", fp.ChunkCount))
		out.Successf("Removed %s (%d chunks)", abs, fp.ChunkCount)
	}
	return nil
}

func newClearCmd(st *cliState) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every chunk and fingerprint in the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			if !yes {
				out.Warning("This deletes the whole index. Re-run with --yes to confirm.")
				return nil
			}
			return runClear(cmd.Context(), out, st)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm clearing the index")

	return cmd
}

func runClear(ctx context.Context, out *output.Writer, st *cliState) error {
	ws, err := st.openWorkspace(ctx, openOptions{mustExist: true})
	if err != nil {
		return err
	}
	defer ws.Close()

	if err := ws.lock.TryLock(); err != nil {
		return err
	}
	stats, err := ws.store.Stats(ctx)
	if err != nil {
		return err
	}
	if err := ws.store.Clear(ctx); err != nil {
		return err
	}
	st.logger.Info("index_cleared", slog.Int("files", stats.Files), slog.Int("chunks", stats.Chunks))
	out.Successf("Cleared %d files (%d chunks)", stats.Files, stats.Chunks)
	return nil
}
