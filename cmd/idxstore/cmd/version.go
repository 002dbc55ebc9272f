package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/idxstore/internal/config"
	"github.com/Aman-CERP/idxstore/pkg/version"
)

// versionReport is the --json shape: build info plus the backend this
// invocation would talk to.
type versionReport struct {
	version.BuildInfo
	Backend        string `json:"backend,omitempty"`
	BackendAddress string `json:"backend_address,omitempty"`
}

func newVersionCmd(opts *rootOptions) *cobra.Command {
	var (
		jsonOutput  bool
		shortOutput bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print the idxstore version, build details and the backend selected by
the current configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if shortOutput {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Short())
				return err
			}

			report := versionReport{BuildInfo: version.GetInfo()}
			// A broken config should not stop version from printing.
			if cfg, err := opts.config(); err == nil {
				report.Backend = cfg.Backend.Kind
				report.BackendAddress = backendAddress(cfg)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			if _, err := fmt.Fprintln(cmd.OutOrStdout(), version.String()); err != nil {
				return err
			}
			if report.Backend != "" {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "backend: %s %s\n", report.Backend, report.BackendAddress)
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	cmd.Flags().BoolVar(&shortOutput, "short", false, "Output only the version number")

	return cmd
}

// backendAddress is the URL or directory the configured backend uses.
func backendAddress(cfg *config.Config) string {
	if cfg.Backend.Kind == config.BackendBleve {
		return cfg.Backend.DataDir
	}
	return fmt.Sprintf("http://%s:%d", cfg.Backend.Host, cfg.Backend.Port)
}
