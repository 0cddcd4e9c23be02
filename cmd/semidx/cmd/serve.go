package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semidx/internal/mcp"
)

func newServeCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
search, index_document and index_status tools.

stdout carries JSON-RPC only; logs go to ~/.semidx/logs/. Configure your
MCP client to launch:

  semidx serve --dir /path/to/project`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{serveMode: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), st)
		},
	}
}

func runServe(ctx context.Context, st *cliState) error {
	ws, err := st.openWorkspace(ctx, openOptions{embeddings: true})
	if err != nil {
		st.logger.Error("serve_open_failed", slog.String("error", err.Error()))
		return err
	}
	defer ws.Close()

	srv, err := mcp.NewServer(ws.indexer, mcp.Options{
		RootPath:             ws.root,
		DefaultTopK:          st.cfg.Search.TopK,
		DefaultMinSimilarity: st.cfg.Search.MinSimilarity,
		WriteLock:            ws.lock,
		Logger:               st.logger,
	})
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}
