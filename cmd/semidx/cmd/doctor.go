package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semidx/internal/errors"
	"github.com/Aman-CERP/semidx/internal/preflight"
	"github.com/Aman-CERP/semidx/internal/store"
)

func newDoctorCmd(st *cliState) *cobra.Command {
	var jsonOutput, verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that semidx can index this project",
		Long: `Run environment checks: free disk space and write access where the index
lives, the open file limit, the configured embedding provider, and whether the
stored vectors match the provider's dimensions.

Exits non-zero when a required check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := preflight.Target{
				Root:  st.root,
				Embed: st.cfg.EmbedConfig(),
				Store: st.cfg.StoreOptions(st.root, st.logger),
			}
			if st.cfg.Storage.Backend == store.BackendSQLite {
				target.IndexPath = st.cfg.IndexPath(st.root)
			}

			results := preflight.New().RunAll(cmd.Context(), target)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(struct {
					Status string                  `json:"status"`
					Checks []preflight.CheckResult `json:"checks"`
				}{preflight.SummaryStatus(results), results}); err != nil {
					return err
				}
			} else {
				preflight.PrintResults(cmd.OutOrStdout(), results, verbose)
			}

			failed := 0
			for _, r := range results {
				if r.IsCritical() {
					failed++
				}
			}
			if failed > 0 {
				return errors.New(errors.ErrCodeInternal, fmt.Sprintf("%d required check(s) failed", failed), nil).
					WithSuggestion("run 'semidx doctor -v' for details")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show check details")

	return cmd
}
