package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semidx/internal/embed"
	"github.com/Aman-CERP/semidx/internal/mcp"
	"github.com/Aman-CERP/semidx/internal/ui"
)

func newStatusCmd(st *cliState) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index statistics",
		Long: `Display information about the current index: its location, storage
backend, configured embedding model, and how many files, chunks and embedding
dimensions it holds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, st, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, st *cliState, jsonOutput bool) error {
	ws, err := st.openWorkspace(ctx, openOptions{mustExist: true})
	if err != nil {
		return err
	}
	defer ws.Close()

	stats, err := ws.store.Stats(ctx)
	if err != nil {
		return err
	}
	model := configuredModel(st)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(mcp.IndexStatusOutput{
			RootPath:   ws.root,
			FileCount:  stats.Files,
			ChunkCount: stats.Chunks,
			Dimensions: stats.Dimensions,
			Model:      model,
		})
	}

	ui.NewRenderer(cmd.OutOrStdout()).Status(ui.StatusView{
		Root:       ws.root,
		IndexPath:  ws.indexPath,
		Backend:    st.cfg.Storage.Backend,
		Model:      model,
		Files:      stats.Files,
		Chunks:     stats.Chunks,
		Dimensions: stats.Dimensions,
	})
	return nil
}

// configuredModel names the embedding model without contacting the provider.
func configuredModel(st *cliState) string {
	e := st.cfg.Embeddings
	if strings.EqualFold(e.Provider, string(embed.ProviderStatic)) || e.Model == "" {
		return strings.ToLower(e.Provider)
	}
	return fmt.Sprintf("%s/%s", strings.ToLower(e.Provider), e.Model)
}
