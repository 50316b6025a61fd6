// Package pipeline orchestrates the schema toolchain end to end: compile the
// declaration source, emit Go models and migration SQL, and drive live
// database migration.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/electwix/schemaflow/internal/codegen"
	"github.com/electwix/schemaflow/internal/config"
	"github.com/electwix/schemaflow/internal/diagnostics"
	"github.com/electwix/schemaflow/internal/dialect"
	"github.com/electwix/schemaflow/internal/introspect"
	"github.com/electwix/schemaflow/internal/logging"
	"github.com/electwix/schemaflow/internal/migrate"
	"github.com/electwix/schemaflow/internal/schema/analyzer"
	"github.com/electwix/schemaflow/internal/schema/ast"
	"github.com/electwix/schemaflow/internal/schema/parser"
	"github.com/electwix/schemaflow/internal/schema/token"
)

// Environment captures external dependencies used by the pipeline.
type Environment struct {
	Logger *slog.Logger
	Writer Writer
	// Stdout receives dry-run scripts and introspection output.
	Stdout io.Writer
	// Catalog overrides the live catalog reader, used in tests.
	Catalog func(d dialect.Dialect) migrate.CatalogReader
}

// Writer writes generated files to persistent storage.
type Writer interface {
	WriteFile(path string, data []byte) error
}

// Pipeline orchestrates compilation, generation, and migration.
type Pipeline struct {
	Env Environment
}

// RunOptions configures a pipeline execution.
type RunOptions struct {
	ConfigPath   string
	DatabaseURL  string
	DryRun       bool
	StrictConfig bool
}

// Summary captures outputs and diagnostics collected during a run.
type Summary struct {
	Schema      *ast.Schema
	Diagnostics []diagnostics.Diagnostic
	Files       []string
}

// DiagnosticsError indicates that errors were reported via diagnostics.
type DiagnosticsError struct {
	Diagnostic diagnostics.Diagnostic
	Cause      error
}

func (e *DiagnosticsError) Error() string {
	d := e.Diagnostic
	return fmt.Sprintf("%s:%d:%d: %s", d.Path, d.Line, d.Column, d.Message)
}

func (e *DiagnosticsError) Unwrap() error { return e.Cause }

// WriteError wraps failures encountered while writing generated files.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// NewOSWriter returns a Writer that performs atomic writes on the local
// filesystem.
func NewOSWriter() Writer {
	return &osWriter{perm: 0o644}
}

type osWriter struct {
	perm fs.FileMode
}

func (w *osWriter) WriteFile(path string, data []byte) error {
	if path == "" {
		return errors.New("pipeline: empty path")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".schemaflow-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
		_ = tmp.Close()
	}()
	if w.perm != 0 {
		if err := tmp.Chmod(w.perm); err != nil {
			return fmt.Errorf("chmod temp file: %w", err)
		}
	}
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	success = true
	return nil
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Env.Logger != nil {
		return p.Env.Logger
	}
	return logging.Discard()
}

func (p *Pipeline) stdout() io.Writer {
	if p.Env.Stdout != nil {
		return p.Env.Stdout
	}
	return os.Stdout
}

// Compile reads and compiles one schema file: scan, parse, analyze. The
// returned diagnostics include warnings; an error means at least one
// error-severity diagnostic was recorded.
func (p *Pipeline) Compile(path string) (*ast.Schema, []diagnostics.Diagnostic, error) {
	source, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, nil, fmt.Errorf("read schema: %w", err)
	}

	var collected diagnostics.Collection
	tokens, scanDiags, err := token.Scan(path, source)
	collected.Extend(scanDiags)
	if err != nil {
		return nil, collected.All(), err
	}

	// A non-empty file that scans to nothing but the end marker (comments
	// and discarded characters only) is a compile failure, not a success
	// with zero models.
	if len(tokens) == 1 && len(bytes.TrimSpace(source)) > 0 {
		d := diagnostics.Errorf(diagnostics.SourceLexer, path, 1, 1, "source produced no tokens")
		collected.Add(d)
		return nil, collected.All(), &DiagnosticsError{Diagnostic: d}
	}

	schema, parseDiags, err := parser.Parse(path, tokens)
	collected.Extend(parseDiags)
	if err != nil {
		return nil, collected.All(), err
	}

	collected.Extend(analyzer.Analyze(path, schema))
	collected.SortByPosition()

	if collected.HasErrors() {
		first := collected.Errors()[0]
		return schema, collected.All(), &DiagnosticsError{Diagnostic: first}
	}
	return schema, collected.All(), nil
}

// loadPlan resolves the configuration and applies CLI overrides.
func (p *Pipeline) loadPlan(opts RunOptions) (config.JobPlan, []diagnostics.Diagnostic, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = "schemaflow.toml"
	}
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return config.JobPlan{}, nil, fmt.Errorf("resolve config path: %w", err)
	}
	result, err := config.Load(absPath, config.LoadOptions{Strict: opts.StrictConfig})
	if err != nil {
		return config.JobPlan{}, nil, err
	}
	var diags []diagnostics.Diagnostic
	for _, warning := range result.Warnings {
		diags = append(diags, diagnostics.Warnf(diagnostics.SourceGenerator, absPath, 1, 1, "%s", warning))
	}
	plan := result.Plan
	if opts.DatabaseURL != "" {
		plan.Database = opts.DatabaseURL
	}
	return plan, diags, nil
}

// Validate compiles the schema and reports diagnostics without generating
// anything.
func (p *Pipeline) Validate(ctx context.Context, opts RunOptions) (Summary, error) {
	var summary Summary
	plan, diags, err := p.loadPlan(opts)
	summary.Diagnostics = diags
	if err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	schema, compileDiags, err := p.Compile(plan.SchemaPath)
	summary.Schema = schema
	summary.Diagnostics = append(summary.Diagnostics, compileDiags...)
	return summary, err
}

type output struct {
	path    string
	content []byte
}

// Generate compiles the schema and writes the Go models file and a full
// migration script for the configured database dialect.
func (p *Pipeline) Generate(ctx context.Context, opts RunOptions) (Summary, error) {
	var summary Summary
	plan, diags, err := p.loadPlan(opts)
	summary.Diagnostics = diags
	if err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	schema, compileDiags, err := p.Compile(plan.SchemaPath)
	summary.Schema = schema
	summary.Diagnostics = append(summary.Diagnostics, compileDiags...)
	if err != nil {
		return summary, err
	}
	log := p.logger()

	models, err := codegen.Generate(schema, codegen.Options{Package: plan.Package})
	if err != nil {
		return summary, err
	}

	d := dialect.Generic
	if plan.Database != "" {
		d, err = dialect.FromScheme(plan.Database)
		if err != nil {
			return summary, err
		}
	}
	script, err := migrate.NewGenerator(d, log).Generate(nil, schema)
	if err != nil && !errors.Is(err, migrate.ErrNoChanges) {
		return summary, err
	}

	outputs := []output{{plan.ModelsOut, models}}
	if script != nil {
		outputs = append(outputs, output{plan.MigrationOut, []byte(script.Render())})
	}

	if opts.DryRun {
		for _, out := range outputs {
			summary.Files = append(summary.Files, out.path)
		}
		return summary, nil
	}

	writer := p.Env.Writer
	if writer == nil {
		writer = NewOSWriter()
	}
	for _, out := range outputs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		same, cmpErr := fileMatches(out.path, out.content)
		if cmpErr != nil {
			return summary, &WriteError{Path: out.path, Err: cmpErr}
		}
		if same {
			log.Debug("output unchanged", "path", out.path)
			continue
		}
		if err := writer.WriteFile(out.path, out.content); err != nil {
			return summary, &WriteError{Path: out.path, Err: err}
		}
		summary.Files = append(summary.Files, out.path)
		log.Info("wrote output", "path", out.path)
	}
	return summary, nil
}

// Migrate compiles the schema and converges the live database onto it.
// Returns migrate.ErrNoChanges when the database already matches.
func (p *Pipeline) Migrate(ctx context.Context, opts RunOptions) (Summary, error) {
	var summary Summary
	plan, diags, err := p.loadPlan(opts)
	summary.Diagnostics = diags
	if err != nil {
		return summary, err
	}
	schema, compileDiags, err := p.Compile(plan.SchemaPath)
	summary.Schema = schema
	summary.Diagnostics = append(summary.Diagnostics, compileDiags...)
	if err != nil {
		return summary, err
	}
	if plan.Database == "" {
		return summary, errors.New("no database configured: set migration.database or DATABASE_URL")
	}
	d, err := dialect.FromScheme(plan.Database)
	if err != nil {
		return summary, err
	}

	migrator := migrate.NewMigrator(d, p.catalogReader(d), p.logger())
	migrator.DryRun = opts.DryRun
	migrator.Out = p.stdout()
	return summary, migrator.Run(ctx, plan.Database, schema)
}

// Introspect reads the live database and renders it as declaration source
// on stdout.
func (p *Pipeline) Introspect(ctx context.Context, opts RunOptions) (Summary, error) {
	var summary Summary
	plan, diags, err := p.loadPlan(opts)
	summary.Diagnostics = diags
	if err != nil {
		return summary, err
	}
	if plan.Database == "" {
		return summary, errors.New("no database configured: set migration.database or DATABASE_URL")
	}
	d, err := dialect.FromScheme(plan.Database)
	if err != nil {
		return summary, err
	}
	schema, err := p.catalogReader(d).Read(ctx, plan.Database)
	if err != nil {
		return summary, err
	}
	summary.Schema = schema
	_, err = io.WriteString(p.stdout(), ast.Format(schema))
	return summary, err
}

func (p *Pipeline) catalogReader(d dialect.Dialect) migrate.CatalogReader {
	if p.Env.Catalog != nil {
		return p.Env.Catalog(d)
	}
	return introspect.NewReader(d, p.logger())
}

func fileMatches(path string, content []byte) (bool, error) {
	existing, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(existing, content), nil
}
