package cmd

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semidx/internal/ui"
)

func newFilesCmd(st *cliState) *cobra.Command {
	var relative bool

	cmd := &cobra.Command{
		Use:   "files",
		Short: "List indexed files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFiles(cmd.Context(), cmd, st, relative)
		},
	}

	cmd.Flags().BoolVarP(&relative, "relative", "r", false, "Print paths relative to the project root")

	return cmd
}

func runFiles(ctx context.Context, cmd *cobra.Command, st *cliState, relative bool) error {
	ws, err := st.openWorkspace(ctx, openOptions{mustExist: true})
	if err != nil {
		return err
	}
	defer ws.Close()

	files, err := ws.store.IndexedFiles(ctx)
	if err != nil {
		return err
	}
	if relative {
		for i, f := range files {
			if rel, err := filepath.Rel(ws.root, f); err == nil && !strings.HasPrefix(rel, "..") {
				files[i] = rel
			}
		}
	}
	ui.NewRenderer(cmd.OutOrStdout()).Files(files)
	return nil
}
