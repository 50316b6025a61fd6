// Command schemaflow compiles schema declarations into Go models and SQL
// migrations, and converges live databases onto the declared schema.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/electwix/schemaflow/internal/diagnostics"
	"github.com/electwix/schemaflow/internal/logging"
	"github.com/electwix/schemaflow/internal/migrate"
	"github.com/electwix/schemaflow/internal/pipeline"
)

var (
	flagConfig   string
	flagDatabase string
	flagVerbose  bool
	flagStrict   bool
	flagDryRun   bool
)

var rootCmd = &cobra.Command{
	Use:           "schemaflow",
	Short:         "Schema declaration compiler and database migration tool",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to schemaflow config file (default schemaflow.toml)")
	rootCmd.PersistentFlags().StringVar(&flagDatabase, "database-url", "", "database connection string, overrides config and DATABASE_URL")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagStrict, "strict", false, "treat unknown configuration keys as errors")

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Compile the schema and write Go models plus a migration script",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPipeline()
			summary, err := p.Generate(cmd.Context(), runOptions())
			reportDiagnostics(summary.Diagnostics)
			return err
		},
	}
	generateCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "compile and report outputs without writing files")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the declared schema to the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPipeline()
			summary, err := p.Migrate(cmd.Context(), runOptions())
			reportDiagnostics(summary.Diagnostics)
			if errors.Is(err, migrate.ErrNoChanges) {
				fmt.Fprintln(os.Stderr, "database already matches schema")
				return nil
			}
			return err
		},
	}
	migrateCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "print the migration script without executing it")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Compile the schema and report diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPipeline()
			summary, err := p.Validate(cmd.Context(), runOptions())
			reportDiagnostics(summary.Diagnostics)
			if err == nil {
				fmt.Fprintln(os.Stderr, "schema is valid")
			}
			return err
		},
	}

	introspectCmd := &cobra.Command{
		Use:   "introspect",
		Short: "Read the live database and print it as schema declarations",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPipeline()
			summary, err := p.Introspect(cmd.Context(), runOptions())
			reportDiagnostics(summary.Diagnostics)
			return err
		},
	}

	rootCmd.AddCommand(generateCmd, migrateCmd, validateCmd, introspectCmd)
}

func newPipeline() *pipeline.Pipeline {
	return &pipeline.Pipeline{Env: pipeline.Environment{
		Logger: logging.New(logging.Options{Verbose: flagVerbose, Writer: os.Stderr}),
		Stdout: os.Stdout,
	}}
}

func runOptions() pipeline.RunOptions {
	return pipeline.RunOptions{
		ConfigPath:   flagConfig,
		DatabaseURL:  flagDatabase,
		DryRun:       flagDryRun,
		StrictConfig: flagStrict,
	}
}

// reportDiagnostics prints collected diagnostics to stderr, warnings
// included, in source order.
func reportDiagnostics(diags []diagnostics.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintln(os.Stderr, d.String())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
