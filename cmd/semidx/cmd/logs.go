package cmd

import (
	"regexp"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semidx/internal/errors"
	"github.com/Aman-CERP/semidx/internal/logging"
	"github.com/Aman-CERP/semidx/internal/output"
	"github.com/Aman-CERP/semidx/internal/ui"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	file    string
}

func newLogsCmd() *cobra.Command {
	opts := logsOptions{}

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View semidx logs",
		Long: `Show the last lines of the semidx log (~/.semidx/logs/semidx.log), or
follow new entries with -f.`,
		Example: `  semidx logs                    # Last 50 lines
  semidx logs -n 200 --level warn
  semidx logs -f --filter sync   # Follow sync activity`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only show lines matching this regex")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.file, "file", "", "Log file to read (default ~/.semidx/logs/semidx.log)")

	return cmd
}

func runLogs(cmd *cobra.Command, opts logsOptions) error {
	cfg := logging.ViewerConfig{Level: opts.level}
	if opts.filter != "" {
		re, err := regexp.Compile(opts.filter)
		if err != nil {
			return errors.ValidationError("invalid --filter pattern", err)
		}
		cfg.Pattern = re
	}
	path := opts.file
	if path == "" {
		path = logging.DefaultLogPath()
	}

	viewer := logging.NewViewer(cfg)
	renderer := ui.NewRenderer(cmd.OutOrStdout())
	if opts.noColor {
		renderer = ui.NewRendererWithStyles(cmd.OutOrStdout(), ui.NoColorStyles())
	}
	status := output.New(cmd.ErrOrStderr())

	if !opts.follow {
		entries, err := viewer.Tail(path, opts.lines)
		if err != nil {
			return err
		}
		for _, e := range entries {
			renderer.LogEntry(e)
		}
		return nil
	}

	status.Statusf("📄", "Following %s (Ctrl+C to stop)", path)
	ctx := cmd.Context()
	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)
	go func() { errCh <- viewer.Follow(ctx, path, entries) }()

	for {
		select {
		case e := <-entries:
			renderer.LogEntry(e)
		case err := <-errCh:
			return err
		}
	}
}
