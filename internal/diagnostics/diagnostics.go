// Package diagnostics carries positional feedback produced by the schema
// toolchain. Lexer warnings, syntax errors, and semantic errors all flow
// through the same Diagnostic shape so the CLI can report every defect found
// in a run instead of stopping at the first.
package diagnostics

import (
	"fmt"
	"sort"
	"strings"
)

// Severity indicates the seriousness of a diagnostic.
type Severity int

const (
	// SeverityWarning indicates a non-fatal issue; the run may continue.
	SeverityWarning Severity = iota
	// SeverityError indicates a fatal issue that aborts before generation.
	SeverityError
)

// String returns the printable severity name.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Source identifies the pipeline stage that produced a diagnostic.
type Source string

const (
	// SourceLexer marks tokenizer warnings (unknown characters, unterminated literals).
	SourceLexer Source = "lexer"
	// SourceParser marks syntax errors.
	SourceParser Source = "parser"
	// SourceAnalyzer marks semantic errors.
	SourceAnalyzer Source = "analyzer"
	// SourceGenerator marks migration generation warnings.
	SourceGenerator Source = "generator"
)

// Diagnostic is one positional message with 1-based line and column.
type Diagnostic struct {
	Path     string
	Line     int
	Column   int
	Message  string
	Severity Severity
	Source   Source
}

// Error implements the error interface so error-level diagnostics can be
// returned directly where a single failure suffices.
func (d Diagnostic) Error() string {
	if d.Path != "" {
		return fmt.Sprintf("%s:%d:%d: %s: %s", d.Path, d.Line, d.Column, d.Severity, d.Message)
	}
	return fmt.Sprintf("%d:%d: %s: %s", d.Line, d.Column, d.Severity, d.Message)
}

// String returns the human-readable form, including the producing stage.
func (d Diagnostic) String() string {
	if d.Source == "" {
		return d.Error()
	}
	return d.Error() + " (" + string(d.Source) + ")"
}

// Errorf builds an error diagnostic at the given position.
func Errorf(source Source, path string, line, column int, format string, args ...any) Diagnostic {
	return Diagnostic{
		Path:     path,
		Line:     line,
		Column:   column,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityError,
		Source:   source,
	}
}

// Warnf builds a warning diagnostic at the given position.
func Warnf(source Source, path string, line, column int, format string, args ...any) Diagnostic {
	return Diagnostic{
		Path:     path,
		Line:     line,
		Column:   column,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityWarning,
		Source:   source,
	}
}

// Collection accumulates diagnostics across pipeline stages.
type Collection struct {
	diags []Diagnostic
}

// Add appends one diagnostic.
func (c *Collection) Add(d Diagnostic) {
	c.diags = append(c.diags, d)
}

// Extend appends a batch of diagnostics.
func (c *Collection) Extend(ds []Diagnostic) {
	c.diags = append(c.diags, ds...)
}

// All returns a copy of every accumulated diagnostic.
func (c *Collection) All() []Diagnostic {
	return append([]Diagnostic(nil), c.diags...)
}

// Errors returns the error-level subset.
func (c *Collection) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range c.diags {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns the warning-level subset.
func (c *Collection) Warnings() []Diagnostic {
	var out []Diagnostic
	for _, d := range c.diags {
		if d.Severity == SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

// HasErrors reports whether any error-level diagnostic was recorded.
func (c *Collection) HasErrors() bool {
	for _, d := range c.diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Len returns the number of accumulated diagnostics.
func (c *Collection) Len() int {
	return len(c.diags)
}

// SortByPosition orders diagnostics by path, line, then column.
func (c *Collection) SortByPosition() {
	sort.SliceStable(c.diags, func(i, j int) bool {
		a, b := c.diags[i], c.diags[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}

// Render joins every diagnostic into one report, one per line.
func (c *Collection) Render() string {
	lines := make([]string, 0, len(c.diags))
	for _, d := range c.diags {
		lines = append(lines, d.String())
	}
	return strings.Join(lines, "\n")
}
