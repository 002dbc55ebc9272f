// Package cmd provides the CLI commands for idxstore.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/idxstore/internal/config"
	amerrors "github.com/Aman-CERP/idxstore/internal/errors"
	"github.com/Aman-CERP/idxstore/internal/logging"
	"github.com/Aman-CERP/idxstore/internal/profiling"
	"github.com/Aman-CERP/idxstore/internal/store"
	"github.com/Aman-CERP/idxstore/pkg/version"
)

// rootOptions holds persistent flags shared by every subcommand.
type rootOptions struct {
	debug   bool
	dir     string
	backend string
	host    string
	port    int
	dataDir string

	profile profiling.Options

	cfg            *config.Config
	loggingCleanup func()
	profiler       *profiling.Session
}

// NewRootCmd creates the root command for idxstore CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "idxstore",
		Short: "Buffered bulk writes and simple queries against a search index",
		Long: `idxstore loads JSON events into a search index in bulk and runs
query-string searches against it.

It talks to Elasticsearch over HTTP, or keeps indexes on local disk
with the embedded bleve backend (backend.kind: bleve).`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("idxstore version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to ~/.idxstore/logs/")
	cmd.PersistentFlags().StringVar(&opts.dir, "dir", ".", "Directory to look for .idxstore.yaml in")
	cmd.PersistentFlags().StringVar(&opts.backend, "backend", "", "Backend kind: elasticsearch, bleve (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.host, "host", "", "Elasticsearch host (overrides config)")
	cmd.PersistentFlags().IntVar(&opts.port, "port", 0, "Elasticsearch port (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Data directory for the bleve backend (overrides config)")

	cmd.PersistentFlags().StringVar(&opts.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := opts.startLogging(cmd.Name()); err != nil {
			return err
		}
		profiler, err := profiling.Start(opts.profile)
		if err != nil {
			return err
		}
		opts.profiler = profiler
		return nil
	}
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		err := opts.profiler.Stop()
		opts.profiler = nil
		opts.stopLogging()
		return err
	}

	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newImportCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd(opts))

	return cmd
}

// Execute runs the root command, printing any error to stderr.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	executed, err := root.ExecuteContextC(ctx)
	if err != nil {
		if amerrors.IsFatal(err) {
			slog.Error("command_failed", amerrors.LogAttrs(err)...)
		} else {
			slog.Debug("command_failed", amerrors.LogAttrs(err)...)
		}
		debug, _ := root.PersistentFlags().GetBool("debug")
		renderError(os.Stderr, executed, err, debug)
		return err
	}
	return nil
}

// renderError prints err for a human, or as JSON when the failed command
// was asked for JSON output.
func renderError(w io.Writer, executed *cobra.Command, err error, debug bool) {
	if executed != nil {
		if f := executed.Flags().Lookup("format"); f != nil && f.Value.String() == "json" {
			if data, jerr := amerrors.FormatJSON(err); jerr == nil {
				_, _ = fmt.Fprintln(w, string(data))
				return
			}
		}
	}
	if debug {
		_, _ = fmt.Fprintln(w, amerrors.FormatForUser(err, true))
		return
	}
	_, _ = fmt.Fprint(w, amerrors.FormatForCLI(err))
}

// Exit codes, following sysexits(3).
const (
	exitFailure  = 1
	exitDataErr  = 65
	exitIOErr    = 74
	exitTempFail = 75
	exitConfig   = 78
)

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if amerrors.IsRetryable(err) {
		return exitTempFail
	}
	switch amerrors.GetCategory(err) {
	case amerrors.CategoryConfig:
		return exitConfig
	case amerrors.CategoryValidation:
		return exitDataErr
	case amerrors.CategoryIO:
		return exitIOErr
	default:
		return exitFailure
	}
}

// config loads the effective configuration once, applying flag overrides
// on top of files and environment.
func (o *rootOptions) config() (*config.Config, error) {
	if o.cfg != nil {
		return o.cfg, nil
	}

	cfg, err := config.Load(o.dir)
	if err != nil {
		return nil, amerrors.ConfigError("failed to load configuration", err).
			WithSuggestion("Run 'idxstore config show' to inspect the effective configuration")
	}

	if o.backend != "" {
		cfg.Backend.Kind = strings.ToLower(o.backend)
	}
	if o.host != "" {
		cfg.Backend.Host = o.host
	}
	if o.port != 0 {
		cfg.Backend.Port = o.port
	}
	if o.dataDir != "" {
		cfg.Backend.DataDir = o.dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, amerrors.ConfigError(err.Error(), err)
	}

	o.cfg = cfg
	return cfg, nil
}

// openStore opens a store for the effective configuration.
func (o *rootOptions) openStore() (*store.IndexStore, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	s, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}
	slog.Debug("store_opened",
		slog.String("backend", cfg.Backend.Kind),
		slog.String("host", cfg.Backend.Host),
		slog.Int("port", cfg.Backend.Port))
	return s, nil
}

// debugLogConfig is the --debug file logging setup for the named command.
// Imports log per flush, so they skip the fsync after every record.
func debugLogConfig(command string) logging.Config {
	cfg := logging.DebugConfig()
	cfg.WriteToStderr = false
	cfg.ImmediateSync = command != "import"
	return cfg
}

func (o *rootOptions) startLogging(command string) error {
	if o.debug {
		logCfg := debugLogConfig(command)
		logger, cleanup, err := logging.Setup(logCfg)
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		o.loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("debug_logging_enabled",
			slog.String("log_file", logCfg.FilePath),
			slog.String("version", version.Version))
		return nil
	}

	level := config.DefaultLogLevel
	if cfg, err := o.config(); err == nil {
		level = cfg.Logging.Level
	}
	slog.SetDefault(logging.NewStderrLogger(level))
	return nil
}

func (o *rootOptions) stopLogging() {
	if o.loggingCleanup != nil {
		slog.Info("debug_logging_stopped")
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
}
