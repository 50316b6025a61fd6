// Package codegen emits Go model declarations from a schema tree: one struct
// per model, nested structs for inline json shapes, and a name registry for
// dynamic lookup. Output is passed through goimports so the emitter never
// tracks its own import list.
package codegen

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/tools/imports"

	"github.com/electwix/schemaflow/internal/schema/ast"
)

// Options controls the emitted file.
type Options struct {
	// Package is the package clause name. Defaults to "models".
	Package string
	// FileName is passed to goimports for diagnostics. Defaults to
	// models.gen.go.
	FileName string
}

// Generate renders the schema as formatted Go source.
func Generate(schema *ast.Schema, opts Options) ([]byte, error) {
	if opts.Package == "" {
		opts.Package = "models"
	}
	if opts.FileName == "" {
		opts.FileName = "models.gen.go"
	}

	e := &emitter{}
	e.printf("// Code generated by schemaflow. DO NOT EDIT.\n\n")
	e.printf("package %s\n\n", opts.Package)

	for _, model := range schema.Models {
		e.emitModel(model)
	}
	e.emitRegistry(schema)

	formatted, err := imports.Process(opts.FileName, []byte(e.b.String()), nil)
	if err != nil {
		return nil, fmt.Errorf("format generated models: %w", err)
	}
	return formatted, nil
}

type emitter struct {
	b strings.Builder
}

func (e *emitter) printf(format string, args ...any) {
	fmt.Fprintf(&e.b, format, args...)
}

func (e *emitter) emitModel(model *ast.Model) {
	name := exportName(model.Name)

	// Inline json shapes become named sibling types so fields stay flat.
	for _, field := range model.Fields {
		if field.JSONType != nil {
			e.emitJSONType(name+exportName(field.Name), field.JSONType)
		}
	}

	e.printf("// %s mirrors the %s table.\n", name, model.Name)
	e.printf("type %s struct {\n", name)
	for _, field := range model.Fields {
		e.printf("\t%s %s `json:%q db:%q`\n",
			exportName(field.Name), e.fieldType(name, field), field.Name, columnTag(field))
	}
	e.printf("}\n\n")
}

func (e *emitter) emitJSONType(name string, obj *ast.JSONObject) {
	// Depth-first so nested shapes are declared before their parents use
	// them.
	for _, field := range obj.Fields {
		if field.Object != nil {
			e.emitJSONType(name+exportName(field.Name), field.Object)
		}
	}
	e.printf("type %s struct {\n", name)
	for _, field := range obj.Fields {
		tag := field.Name
		if field.Optional {
			tag += ",omitempty"
		}
		e.printf("\t%s %s `json:%q`\n", exportName(field.Name), jsonFieldType(name, field), tag)
	}
	e.printf("}\n\n")
}

func (e *emitter) fieldType(owner string, field *ast.Field) string {
	if field.Relation != nil && !field.Type.IsScalar() {
		ref := exportName(field.Type.Reference)
		switch field.Relation.Kind {
		case ast.RelationOneToMany, ast.RelationManyToMany:
			return "[]" + ref
		default:
			return "*" + ref
		}
	}
	if field.JSONType != nil {
		t := owner + exportName(field.Name)
		if field.IsArray {
			return "[]" + t
		}
		if !field.Required {
			return "*" + t
		}
		return t
	}

	t := scalarGoType(field.Type.Scalar)
	if field.IsArray {
		return "[]" + t
	}
	if !field.Required && !field.PrimaryKey {
		return "*" + t
	}
	return t
}

func jsonFieldType(owner string, field *ast.JSONField) string {
	var t string
	if field.Object != nil {
		t = owner + exportName(field.Name)
	} else {
		t = scalarGoType(ast.ScalarKindFromName(field.Type))
	}
	if field.IsArray {
		return "[]" + t
	}
	if field.Optional {
		return "*" + t
	}
	return t
}

func scalarGoType(kind ast.ScalarKind) string {
	switch kind {
	case ast.ScalarInt:
		return "int64"
	case ast.ScalarFloat:
		return "float64"
	case ast.ScalarBoolean:
		return "bool"
	case ast.ScalarDateTime, ast.ScalarDate:
		return "time.Time"
	case ast.ScalarJSON:
		return "json.RawMessage"
	default:
		return "string"
	}
}

// emitRegistry declares the model-name union and a lookup table from table
// name to zero value.
func (e *emitter) emitRegistry(schema *ast.Schema) {
	if len(schema.Models) == 0 {
		return
	}
	names := make([]string, 0, len(schema.Models))
	for _, model := range schema.Models {
		names = append(names, model.Name)
	}
	sort.Strings(names)

	e.printf("// ModelName identifies a declared model by its table name.\n")
	e.printf("type ModelName string\n\n")
	e.printf("const (\n")
	for _, name := range names {
		e.printf("\tModelName%s ModelName = %q\n", exportName(name), name)
	}
	e.printf(")\n\n")
	e.printf("// Registry maps each table name to a zero value of its struct.\n")
	e.printf("var Registry = map[ModelName]any{\n")
	for _, name := range names {
		e.printf("\tModelName%s: %s{},\n", exportName(name), exportName(name))
	}
	e.printf("}\n")
}

// columnTag returns the physical column backing a field for the db tag.
func columnTag(field *ast.Field) string {
	if field.Relation != nil && !field.Type.IsScalar() {
		switch field.Relation.Kind {
		case ast.RelationManyToOne, ast.RelationOneToOne:
			if field.Relation.ForeignKey != "" {
				return field.Relation.ForeignKey
			}
			return field.Name + "_id"
		default:
			return "-"
		}
	}
	return field.Name
}

// exportName converts a snake_case identifier to an exported Go name.
func exportName(name string) string {
	parts := strings.Split(name, "_")
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		if part == "id" {
			b.WriteString("ID")
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}
