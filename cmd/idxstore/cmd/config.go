package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/idxstore/configs"
	"github.com/Aman-CERP/idxstore/internal/config"
	amerrors "github.com/Aman-CERP/idxstore/internal/errors"
	"github.com/Aman-CERP/idxstore/internal/output"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Inspect and create idxstore configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/idxstore/config.yaml)
  3. Project config (.idxstore.yaml)
  4. Environment variables (IDXSTORE_*)
  5. Command-line flags (--backend, --host, --port, --data-dir)`,
		Example: `  # Create user config from template
  idxstore config init

  # Show effective configuration
  idxstore config show

  # Print user config file path
  idxstore config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd(opts))
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create user configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())

			backup, err := config.InitUserConfig([]byte(configs.UserConfigTemplate), force)
			if err != nil {
				return err
			}

			out.Success("Created user configuration")
			out.Statusf("📁", "Location: %s", config.GetUserConfigPath())
			if backup != "" {
				out.Statusf("💾", "Backup: %s", backup)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration (a backup is kept)")

	return cmd
}

func newConfigShowCmd(opts *rootOptions) *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg *config.Config

			switch source {
			case "merged":
				merged, err := opts.config()
				if err != nil {
					return err
				}
				cfg = merged

			case "user":
				path := config.GetUserConfigPath()
				if !config.UserConfigExists() {
					out := output.New(cmd.OutOrStdout())
					out.Warning("No user configuration file found")
					out.Statusf("📁", "Expected at: %s", path)
					out.Status("💡", "Run 'idxstore config init' to create one")
					return nil
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return amerrors.New(amerrors.ErrCodeConfigNotFound, "failed to read user config", err).
						WithDetail("path", path)
				}
				cfg = &config.Config{}
				if err := yaml.Unmarshal(data, cfg); err != nil {
					return amerrors.ConfigError("failed to parse user config", err).
						WithDetail("path", path)
				}

			case "defaults":
				cfg = config.NewConfig()

			default:
				return amerrors.ValidationError(
					fmt.Sprintf("invalid source %q (want merged, user, or defaults)", source), nil)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}
