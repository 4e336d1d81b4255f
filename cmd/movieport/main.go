package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/movieport/internal/pipeline"
	"github.com/ajitpratap0/movieport/pkg/config"
	"github.com/ajitpratap0/movieport/pkg/formats/columnar"
	"github.com/ajitpratap0/movieport/pkg/logger"
)

var version = "0.1.0"

// globalFlags are shared by every command
type globalFlags struct {
	configFile string
	envFile    string
	logLevel   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "movieport",
		Short: "movieport - move a movie catalog between PostgreSQL, Parquet, CSV and Iceberg",
		Long: `movieport converts one movie dataset between a relational store, local Parquet
and CSV files, a CSV file in an S3 bucket and an Iceberg table, checking record
counts at every step.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Path to a YAML configuration file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Environment file loaded when present")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		newVersionCommand(),
		newConfigCommand(flags),
		newRunCommand(flags),
		newResetCommand(flags),
		newExportCommand(flags),
		newSnapshotsCommand(flags),
		newInspectCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "movieport v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newConfigCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			out, err := cfg.Render()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newRunCommand(flags *globalFlags) *cobra.Command {
	var reportFile string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every pipeline stage",
		Long: `Run resets the relational store to its baseline, recreates both buckets, seeds
the CSV file and then moves the data through every format in order:

  postgres -> parquet, bucket csv -> parquet, parquet -> postgres,
  postgres -> csv, postgres -> iceberg, iceberg -> postgres (fresh ids)

Example:
  movieport run --config movieport.yaml --report run.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, reportFile, func(ctx context.Context, a *app) (*pipeline.Report, error) {
				return a.orch.Run(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&reportFile, "report", "", "Write the run report as JSON to this file")
	return cmd
}

func newResetCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the baseline dataset and empty both buckets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, "", func(ctx context.Context, a *app) (*pipeline.Report, error) {
				return a.orch.Reset(ctx)
			})
		},
	}
}

func newExportCommand(flags *globalFlags) *cobra.Command {
	var from, to, reportFile string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Run a single conversion",
		Long: `Export moves every record from one endpoint to another.
Endpoints: postgres, parquet, iceberg, csv. Loading postgres from iceberg
replaces the table contents and assigns fresh ids.

Example:
  movieport export --from postgres --to parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := pipeline.ParseEndpoint(from)
			if err != nil {
				return err
			}
			dst, err := pipeline.ParseEndpoint(to)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, reportFile, func(ctx context.Context, a *app) (*pipeline.Report, error) {
				return a.orch.Export(ctx, src, dst)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Source endpoint (required)")
	cmd.Flags().StringVar(&to, "to", "", "Target endpoint (required)")
	cmd.Flags().StringVar(&reportFile, "report", "", "Write the run report as JSON to this file")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newSnapshotsCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List the Iceberg table snapshot history as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			snapshots, err := a.table.Snapshots(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd, snapshots)
		},
	}
}

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.parquet>",
		Short: "Show row groups, codecs and sizes of a Parquet file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := columnar.NewCodec(zap.NewNop()).Inspect(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, info)
		},
	}
}

func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configFile, flags.envFile)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	return cfg, nil
}

// withApp wires the components, runs fn and writes the report when asked to
func withApp(parent context.Context, flags *globalFlags, reportFile string, fn func(context.Context, *app) (*pipeline.Report, error)) error {
	ctx, stop := signalContext(parent)
	defer stop()

	a, err := newApp(ctx, flags)
	if err != nil {
		return err
	}
	defer a.Close()

	report, runErr := fn(ctx, a)
	if reportFile != "" && report != nil {
		if err := report.WriteFile(reportFile); err != nil {
			a.log.Error("failed to write report", zap.Error(err))
		} else {
			a.log.Info("wrote run report", zap.String("path", reportFile))
		}
	}
	return runErr
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

// ensure the global logger is flushed on every exit path of a command
func init() {
	cobra.OnFinalize(func() { _ = logger.Sync() })
}
