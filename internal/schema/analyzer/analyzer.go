// Package analyzer validates a parsed schema in isolation. The pass is pure:
// it never mutates the tree and collects every violation instead of stopping
// at the first.
package analyzer

import (
	"regexp"
	"strings"

	"github.com/electwix/schemaflow/internal/diagnostics"
	"github.com/electwix/schemaflow/internal/schema/ast"
)

// namePattern is the snake_case rule for model and field names.
var namePattern = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)

// Analyze checks naming and uniqueness rules across the schema. Unknown
// relation targets and foreign keys are reported as warnings: the language
// historically accepted them, so tightening to errors would reject schemas
// that previously compiled.
func Analyze(path string, schema *ast.Schema) []diagnostics.Diagnostic {
	var diags []diagnostics.Diagnostic
	addErr := func(line, col int, format string, args ...any) {
		diags = append(diags, diagnostics.Errorf(diagnostics.SourceAnalyzer, path, line, col, format, args...))
	}
	addWarn := func(line, col int, format string, args ...any) {
		diags = append(diags, diagnostics.Warnf(diagnostics.SourceAnalyzer, path, line, col, format, args...))
	}

	seenModels := make(map[string]*ast.Model, len(schema.Models))
	for _, model := range schema.Models {
		if prev, ok := seenModels[model.Name]; ok {
			addErr(model.Line, model.Column, "duplicate model name %q (previous definition at %d:%d)", model.Name, prev.Line, prev.Column)
		} else {
			seenModels[model.Name] = model
		}
		if !namePattern.MatchString(model.Name) {
			addErr(model.Line, model.Column, "model name %q must be snake_case", model.Name)
		}

		seenFields := make(map[string]*ast.Field, len(model.Fields))
		for _, field := range model.Fields {
			if prev, ok := seenFields[field.Name]; ok {
				addErr(field.Line, field.Column, "duplicate field name %q in model %s (previous definition at %d:%d)", field.Name, model.Name, prev.Line, prev.Column)
			} else {
				seenFields[field.Name] = field
			}
			if !namePattern.MatchString(field.Name) {
				addErr(field.Line, field.Column, "field name %q must be snake_case", field.Name)
			}
		}
	}

	// Cross-model checks run after the name index is complete.
	for _, model := range schema.Models {
		for _, field := range model.Fields {
			if field.Relation == nil {
				continue
			}
			if !field.Type.IsScalar() {
				if _, ok := seenModels[field.Type.Reference]; !ok {
					addWarn(field.Line, field.Column, "relation target %q does not name a declared model", field.Type.Reference)
				}
			}
			if fk := field.Relation.ForeignKey; fk != "" && field.Relation.Kind != ast.RelationManyToMany {
				if target, ok := seenModels[field.Type.Reference]; ok && !foreignKeyResolvable(model, target, fk) {
					addWarn(field.Line, field.Column, "foreign key %q does not name a field or storage column on %s or %s", fk, model.Name, target.Name)
				}
			}
		}
	}

	return diags
}

// foreignKeyResolvable reports whether a relation's foreign key argument is
// plausible. The argument names the physical column backing the relation, not
// a field: a column such as author_id deliberately has no field of its own, so
// an _id-suffixed name is accepted as a storage column by convention. A name
// that is neither a declared field on either participant nor an _id column is
// worth a warning.
func foreignKeyResolvable(owner, target *ast.Model, fk string) bool {
	if owner.Field(fk) != nil || target.Field(fk) != nil {
		return true
	}
	return strings.HasSuffix(fk, "_id")
}
