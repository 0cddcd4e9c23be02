package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semidx/internal/mcp"
	"github.com/Aman-CERP/semidx/internal/search"
	"github.com/Aman-CERP/semidx/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	topK          int
	minSimilarity float64
	files         []string
	format        string // "text", "json"
}

func newSearchCmd(st *cliState) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index by semantic similarity",
		Long: `Embed the query and rank indexed chunks by cosine similarity.

Examples:
  semidx search "how do I rotate the signing key"
  semidx search "retry policy" --top-k 10 --min-similarity 0.3
  semidx search "install steps" --files docs/,README
  semidx search "error handling" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("top-k") {
				opts.topK = st.cfg.Search.TopK
			}
			if !cmd.Flags().Changed("min-similarity") {
				opts.minSimilarity = st.cfg.Search.MinSimilarity
			}
			return runSearch(cmd.Context(), cmd, st, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", search.DefaultTopK, "Maximum number of results (default from config)")
	cmd.Flags().Float64Var(&opts.minSimilarity, "min-similarity", 0, "Drop results below this cosine similarity (default from config)")
	cmd.Flags().StringSliceVar(&opts.files, "files", nil, "Only search files whose path contains one of these substrings")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, st *cliState, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q: use text or json", opts.format)
	}

	ws, err := st.openWorkspace(ctx, openOptions{mustExist: true, embeddings: true})
	if err != nil {
		return err
	}
	defer ws.Close()

	start := time.Now()
	results, err := ws.indexer.Search(ctx, search.Query{
		Text:          query,
		TopK:          opts.topK,
		MinSimilarity: opts.minSimilarity,
		FileFilters:   opts.files,
	})
	if err != nil {
		return err
	}
	st.logger.Info("search_command_completed",
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))

	if opts.format == "json" {
		return writeSearchJSON(cmd, results)
	}
	ui.NewRenderer(cmd.OutOrStdout()).Results(query, results)
	return nil
}

func writeSearchJSON(cmd *cobra.Command, results []*search.SearchResult) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(mcp.NewSearchOutput(results))
}
