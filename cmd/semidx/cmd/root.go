// Package cmd provides the CLI commands for semidx.
package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semidx/internal/config"
	"github.com/Aman-CERP/semidx/internal/errors"
	"github.com/Aman-CERP/semidx/internal/logging"
	"github.com/Aman-CERP/semidx/internal/profiling"
	"github.com/Aman-CERP/semidx/pkg/version"
)

// Command annotations read by the root pre-run hook.
const (
	// skipSetup marks commands that run without loading project configuration.
	skipSetup = "semidx/skip-setup"
	// serveMode marks the MCP server, whose stdio belongs to JSON-RPC.
	serveMode = "semidx/serve"
)

// cliState is filled in by the root pre-run hook and shared by subcommands.
type cliState struct {
	dir     string
	debug   bool
	profile profiling.Options

	root   string
	cfg    *config.Config
	logger *slog.Logger

	// serve routes logs away from stdout and stderr.
	serve bool

	cleanup  func()
	profiler *profiling.Session
}

// NewRootCmd creates the root command for the semidx CLI.
func NewRootCmd() *cobra.Command {
	st := &cliState{}

	cmd := &cobra.Command{
		Use:   "semidx",
		Short: "Persistent incremental semantic index for local files",
		Long: `semidx splits text files into overlapping chunks, embeds them and keeps
them in a local SQLite index that only re-embeds files whose content changed.

Query the index from the terminal with 'semidx search', or expose it to AI
assistants over MCP with 'semidx serve'.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if st.profile.Enabled() {
				p, err := profiling.Start(st.profile)
				if err != nil {
					return err
				}
				st.profiler = p
			}
			if cmd.Annotations[skipSetup] == "true" {
				return nil
			}
			st.serve = cmd.Annotations[serveMode] == "true"
			return st.setup()
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return st.close()
		},
	}
	cmd.SetVersionTemplate("semidx version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&st.dir, "dir", "C", ".", "Project directory")
	cmd.PersistentFlags().BoolVar(&st.debug, "debug", false, "Enable debug logging to ~/.semidx/logs/ and stderr")
	cmd.PersistentFlags().StringVar(&st.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&st.profile.Heap, "profile-mem", "", "Write heap profile to file")
	cmd.PersistentFlags().StringVar(&st.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newIndexCmd(st))
	cmd.AddCommand(newSearchCmd(st))
	cmd.AddCommand(newStatusCmd(st))
	cmd.AddCommand(newFilesCmd(st))
	cmd.AddCommand(newRemoveCmd(st))
	cmd.AddCommand(newClearCmd(st))
	cmd.AddCommand(newWatchCmd(st))
	cmd.AddCommand(newServeCmd(st))
	cmd.AddCommand(newConfigCmd(st))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newDoctorCmd(st))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := NewRootCmd().ExecuteContextC(ctx)
	if err != nil {
		reportError(os.Stderr, c, err)
	}
	return err
}

// reportError prints err for a person, or as JSON when the failed command
// was asked for JSON output.
func reportError(w io.Writer, c *cobra.Command, err error) {
	if c != nil {
		if f := c.Flags().Lookup("json"); f != nil && f.Changed && f.Value.String() == "true" {
			if data, jerr := errors.FormatJSON(err); jerr == nil {
				_, _ = fmt.Fprintln(w, string(data))
				return
			}
		}
	}
	if _, ok := errors.As(err); ok {
		_, _ = fmt.Fprint(w, errors.FormatForCLI(err))
		return
	}
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
}

// setup resolves the project root, loads .env and configuration, and starts
// logging.
func (st *cliState) setup() error {
	root, err := config.FindProjectRoot(st.dir)
	if err != nil {
		return err
	}
	st.root = root

	// Variables already set in the environment win over .env.
	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.ConfigError("failed to load .env", err).WithDetail("path", filepath.Join(root, ".env"))
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	st.cfg = cfg

	logCfg := cfg.LogConfig()
	switch {
	case st.serve:
		level := logCfg.Level
		if st.debug {
			level = "debug"
		}
		logCfg = logging.ServeConfig(level)
	case st.debug:
		logCfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	st.logger = logger
	st.cleanup = cleanup
	slog.SetDefault(logger)

	logger.Debug("cli_started",
		slog.String("root", root),
		slog.String("version", version.Short()),
		slog.String("backend", cfg.Storage.Backend),
		slog.String("provider", cfg.Embeddings.Provider))
	return nil
}

func (st *cliState) close() error {
	var err error
	if st.profiler != nil {
		err = st.profiler.Stop()
		st.profiler = nil
	}
	if st.cleanup != nil {
		st.cleanup()
		st.cleanup = nil
	}
	return err
}
