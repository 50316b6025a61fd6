// Package jsondef parses the raw { ... } blocks captured by the tokenizer
// after a json type keyword. The block text describes the declared shape of
// the json column: named sub-fields with a scalar type or a nested object,
// optionally marked nullable (?) or array ([]), recursively nestable.
package jsondef

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/electwix/schemaflow/internal/schema/ast"
)

type rawObject struct {
	Fields []*rawField `parser:"'{' @@* '}'"`
}

type rawField struct {
	Name     string     `parser:"@Ident"`
	Optional bool       `parser:"@'?'?"`
	Object   *rawObject `parser:"( @@"`
	Type     string     `parser:"| @Ident )"`
	Array    bool       `parser:"@('[' ']')? ','?"`
}

var blockLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Symbol", Pattern: `[{}\[\],?]`},
})

var blockParser = participle.MustBuild[rawObject](
	participle.Lexer(blockLexer),
	participle.Elide("Whitespace", "Comment"),
)

// Parse converts a captured raw block into its object shape. The raw text
// must include the surrounding braces, exactly as the tokenizer captured it.
func Parse(raw string) (*ast.JSONObject, error) {
	obj, err := blockParser.ParseString("", raw)
	if err != nil {
		return nil, fmt.Errorf("json type block: %w", err)
	}
	return convert(obj), nil
}

func convert(obj *rawObject) *ast.JSONObject {
	out := &ast.JSONObject{Fields: make([]*ast.JSONField, 0, len(obj.Fields))}
	for _, f := range obj.Fields {
		field := &ast.JSONField{
			Name:     f.Name,
			Optional: f.Optional,
			IsArray:  f.Array,
		}
		if f.Object != nil {
			field.Object = convert(f.Object)
		} else {
			field.Type = f.Type
		}
		out.Fields = append(out.Fields, field)
	}
	return out
}
