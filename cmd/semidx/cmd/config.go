package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/semidx/internal/config"
	"github.com/Aman-CERP/semidx/internal/errors"
	"github.com/Aman-CERP/semidx/internal/output"
)

func newConfigCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage semidx configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/semidx/config.yaml)
  3. Project config (.semidx.yaml)
  4. .env in the project root
  5. Environment variables (SEMIDX_*)`,
		Example: `  # Write a default .semidx.yaml in the project root
  semidx config init

  # Write the user config instead
  semidx config init --user

  # Show effective configuration
  semidx config show --json`,
	}

	cmd.AddCommand(newConfigInitCmd(st))
	cmd.AddCommand(newConfigShowCmd(st))
	cmd.AddCommand(newConfigPathCmd(st))

	return cmd
}

func newConfigInitCmd(st *cliState) *cobra.Command {
	var force, user bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the defaults",
		Long: `Write the default configuration to .semidx.yaml in the project root, or
to the user config with --user. An existing file is kept unless --force is
given, in which case it is backed up first.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configPath(st, user)
			if err != nil {
				return err
			}
			return runConfigInit(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file (a backup is kept)")
	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of the project config")

	return cmd
}

func newConfigShowCmd(st *cliState) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the configuration after merging defaults, user and project files,
.env and environment variables. The API key is never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := *st.cfg
			cfg.Embeddings.APIKey = ""
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(&cfg); err != nil {
				return errors.InternalError("failed to encode config", err)
			}
			return enc.Close()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd(st *cliState) *cobra.Command {
	var user bool

	cmd := &cobra.Command{
		Use:         "path",
		Short:       "Print the config file path",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configPath(st, user)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}

	cmd.Flags().BoolVar(&user, "user", false, "Print the user config path")

	return cmd
}

// configPath returns the user config path or the project config path for
// --dir. Setup is skipped for these commands, so the root is found here.
func configPath(st *cliState, user bool) (string, error) {
	if user {
		return config.GetUserConfigPath(), nil
	}
	root, err := config.FindProjectRoot(st.dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, config.ProjectConfigName), nil
}

func runConfigInit(cmd *cobra.Command, path string, force bool) error {
	out := output.New(cmd.OutOrStdout())

	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("Configuration already exists")
			out.Statusf("📁", "Location: %s", path)
			out.Status("💡", "Use --force to overwrite it with the defaults (a backup is kept)")
			return nil
		}
		backup, err := config.BackupFile(path)
		if err != nil {
			return err
		}
		out.Statusf("💾", "Backup: %s", backup)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.IOError("failed to create config directory", err).WithDetail("path", filepath.Dir(path))
	}
	if err := config.NewConfig().WriteYAML(path); err != nil {
		return err
	}

	out.Success("Wrote default configuration")
	out.Statusf("📁", "Location: %s", path)
	out.Status("💡", "Run 'semidx config show' to see the effective settings")
	return nil
}
