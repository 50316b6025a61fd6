package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/electwix/schemaflow/internal/dialect"
	"github.com/electwix/schemaflow/internal/logging"
	"github.com/electwix/schemaflow/internal/schema/ast"
)

// CatalogReader reads the live database's current shape as a schema tree.
type CatalogReader interface {
	Read(ctx context.Context, connString string) (*ast.Schema, error)
}

// Migrator drives a full migration run: read the live catalog, diff it
// against the declared schema, and apply the resulting script.
type Migrator struct {
	Dialect dialect.Dialect
	Catalog CatalogReader
	Logger  *slog.Logger

	// DryRun renders the script to Out instead of executing it.
	DryRun bool
	Out    io.Writer

	// openExecutor is swapped in tests.
	openExecutor func(ctx context.Context, d dialect.Dialect, connString string) (Executor, error)
}

// NewMigrator constructs a migrator for one dialect and catalog source.
func NewMigrator(d dialect.Dialect, catalog CatalogReader, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Migrator{
		Dialect:      d,
		Catalog:      catalog,
		Logger:       logging.Component(logger, "migrator"),
		openExecutor: OpenExecutor,
	}
}

// Run executes one migration cycle against the database at connString.
// Returns ErrNoChanges when the live catalog already matches the schema.
func (m *Migrator) Run(ctx context.Context, connString string, schema *ast.Schema) error {
	runID := uuid.NewString()
	log := m.Logger.With("run_id", runID)
	log.Info("starting migration run", "dialect", m.Dialect.String(), "models", len(schema.Models))

	previous, err := m.Catalog.Read(ctx, connString)
	if err != nil {
		return fmt.Errorf("introspect database: %w", err)
	}
	log.Debug("introspected live catalog", "tables", len(previous.Models))

	gen := NewGenerator(m.Dialect, m.Logger)
	script, err := gen.Generate(previous, schema)
	if err != nil {
		if errors.Is(err, ErrNoChanges) {
			log.Info("database already matches schema")
		}
		return err
	}
	log.Info("generated migration script", "statements", len(script.Executable()))

	if m.DryRun {
		if m.Out != nil {
			if _, err := io.WriteString(m.Out, script.Render()); err != nil {
				return fmt.Errorf("write dry-run script: %w", err)
			}
		}
		log.Info("dry run complete; no statements executed")
		return nil
	}

	if !script.hasExecutable() {
		// Every change needs manual handling; surface the explanations
		// instead of running an empty transaction.
		for _, stmt := range script.Statements {
			log.Warn(stmt.SQL)
		}
		return ErrNoChanges
	}

	exec, err := m.openExecutor(ctx, m.Dialect, connString)
	if err != nil {
		return err
	}
	defer exec.Close(ctx)

	if err := m.apply(ctx, exec, script, log); err != nil {
		return err
	}
	log.Info("migration applied", "statements", len(script.Executable()))
	return nil
}

// apply runs an already generated script through the given executor.
func (m *Migrator) apply(ctx context.Context, exec Executor, script *Script, log *slog.Logger) error {
	if err := exec.Apply(ctx, script.Executable()); err != nil {
		var applyErr *ApplyError
		if errors.As(err, &applyErr) {
			applyErr.Script = script
			log.Error("statement failed; transaction rolled back",
				"index", applyErr.Index, "statement", applyErr.Statement)
			return applyErr
		}
		return err
	}
	return nil
}
