package ast

import (
	"fmt"
	"strings"
)

// Format renders a schema tree back into declaration syntax. Output is
// stable for a given tree and parses back into an equivalent schema.
func Format(schema *Schema) string {
	var b strings.Builder
	for i, model := range schema.Models {
		if i > 0 {
			b.WriteString("\n")
		}
		formatModel(&b, model)
	}
	return b.String()
}

func formatModel(b *strings.Builder, model *Model) {
	fmt.Fprintf(b, "model %s {\n", model.Name)
	for _, field := range model.Fields {
		formatField(b, field)
	}
	for _, cols := range model.CombinedUniques {
		fmt.Fprintf(b, "  @@unique([%s])\n", strings.Join(cols, ", "))
	}
	for _, cols := range model.CombinedIndexes {
		fmt.Fprintf(b, "  @@index([%s])\n", strings.Join(cols, ", "))
	}
	if len(model.CombinedPrimaryKey) > 0 {
		fmt.Fprintf(b, "  @@id([%s])\n", strings.Join(model.CombinedPrimaryKey, ", "))
	}
	b.WriteString("}\n")
}

func formatField(b *strings.Builder, field *Field) {
	fmt.Fprintf(b, "  %s %s", field.Name, formatType(field))
	if field.PrimaryKey {
		b.WriteString(" @primary_key")
	}
	if field.Unique {
		b.WriteString(" @unique")
	}
	if field.Required && !field.PrimaryKey {
		b.WriteString(" @required")
	}
	if field.Relation != nil {
		fmt.Fprintf(b, " @%s", field.Relation.Kind)
		if field.Relation.ForeignKey != "" {
			fmt.Fprintf(b, "(%s)", field.Relation.ForeignKey)
		}
	}
	if field.Default != nil {
		fmt.Fprintf(b, " @default(%s)", formatDefault(field.Default))
	}
	b.WriteString("\n")
}

func formatDefault(value *DefaultValue) string {
	if value.Kind == DefaultFunction {
		return value.Func.String() + "()"
	}
	if value.LiteralKind == LiteralString {
		if strings.Contains(value.Literal, `"`) {
			return "'" + value.Literal + "'"
		}
		return `"` + value.Literal + `"`
	}
	return value.Literal
}

func formatType(field *Field) string {
	var t string
	switch {
	case field.JSONType != nil:
		return formatJSONType(field)
	case field.Type.IsScalar():
		t = field.Type.Scalar.String()
	default:
		t = field.Type.Reference
	}
	if field.IsArray {
		t += "[]"
	}
	return t
}

func formatJSONType(field *Field) string {
	t := "json"
	if field.IsArray {
		t += "[]"
	}
	return t + " " + formatJSONObject(field.JSONType, 1)
}

func formatJSONObject(obj *JSONObject, depth int) string {
	indent := strings.Repeat("  ", depth)
	var b strings.Builder
	b.WriteString("{\n")
	for _, f := range obj.Fields {
		fmt.Fprintf(&b, "%s  %s", indent, f.Name)
		if f.Optional {
			b.WriteString("?")
		}
		b.WriteString(" ")
		if f.Object != nil {
			b.WriteString(formatJSONObject(f.Object, depth+1))
		} else {
			b.WriteString(f.Type)
		}
		if f.IsArray {
			b.WriteString("[]")
		}
		b.WriteString(",\n")
	}
	b.WriteString(indent + "}")
	return b.String()
}
