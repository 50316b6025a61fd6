// Package parser implements a recursive-descent parser for the schema
// definition language. Syntax errors inside one model definition are
// confined to that model: the parser records a diagnostic, resynchronizes at
// the next model keyword, and keeps going, so a single run reports every
// defect in the source.
package parser

import (
	"errors"

	"github.com/electwix/schemaflow/internal/diagnostics"
	"github.com/electwix/schemaflow/internal/schema/ast"
	"github.com/electwix/schemaflow/internal/schema/jsondef"
	"github.com/electwix/schemaflow/internal/schema/token"
)

// Parser consumes tokenizer output and produces a schema tree.
type Parser struct {
	tokens []token.Token
	pos    int

	schema *ast.Schema
	diags  []diagnostics.Diagnostic
	path   string
}

// modelError aborts the enclosing model definition only; parsing resumes at
// the next model boundary. Any other error returned from a parse rule is
// fatal for the whole parse.
type modelError struct {
	diag diagnostics.Diagnostic
}

func (e *modelError) Error() string {
	return e.diag.Error()
}

// Parse constructs a schema from the provided tokens, collecting syntax
// diagnostics. The returned schema contains every model that parsed cleanly
// even when diagnostics are present.
func Parse(path string, tokens []token.Token) (*ast.Schema, []diagnostics.Diagnostic, error) {
	p := &Parser{
		tokens: tokens,
		schema: &ast.Schema{},
		path:   path,
	}
	if len(tokens) == 0 || tokens[len(tokens)-1].Kind != token.KindEOF {
		// Guarantee an EOF token to simplify parsing loops.
		p.tokens = append(p.tokens, token.Token{Kind: token.KindEOF, File: path})
	}
	if err := p.parse(); err != nil {
		return nil, p.diags, err
	}
	return p.schema, p.diags, nil
}

func (p *Parser) parse() error {
	for !p.isEOF() {
		start := p.pos
		tok := p.current()
		if tok.Kind == token.KindKeyword && tok.Text == token.KeywordModel {
			if err := p.parseModelDefinition(); err != nil {
				var me *modelError
				if !errors.As(err, &me) {
					return err
				}
				p.diags = append(p.diags, me.diag)
				p.syncToModelBoundary(start)
			}
			continue
		}
		p.errorAt(tok, "expected model declaration, got %s", describe(tok))
		p.syncToModelBoundary(start)
	}
	return nil
}

// syncToModelBoundary discards tokens until the next model keyword or EOF.
// If the cursor has not advanced past start the next token is forcibly
// discarded so recovery always makes progress; the caller has already
// reported the offending token.
func (p *Parser) syncToModelBoundary(start int) {
	if p.pos <= start && !p.isEOF() {
		p.advance()
	}
	for !p.isEOF() {
		if p.matchKeyword(token.KeywordModel) {
			return
		}
		p.advance()
	}
}

func (p *Parser) parseModelDefinition() error {
	p.advance() // model keyword

	nameTok, err := p.expectIdentifier("model name")
	if err != nil {
		return err
	}
	model := &ast.Model{
		Name:   nameTok.Text,
		Line:   nameTok.Line,
		Column: nameTok.Column,
	}

	if err := p.expectSymbol("{"); err != nil {
		return err
	}

	for {
		tok := p.current()
		switch {
		case tok.Kind == token.KindSymbol && tok.Text == "}":
			p.advance()
			p.schema.Models = append(p.schema.Models, model)
			return nil
		case tok.Kind == token.KindEOF:
			return p.failAt(tok, "unexpected end of input in model %s", model.Name)
		case tok.Kind == token.KindComposite:
			if err := p.parseCompositeBlock(model); err != nil {
				return err
			}
		case tok.Kind == token.KindIdentifier || (tok.Kind == token.KindKeyword && token.IsPrimitive(tok.Text)):
			field, err := p.parseFieldDefinition()
			if err != nil {
				return err
			}
			model.Fields = append(model.Fields, field)
		default:
			return p.failAt(tok, "expected field definition or @@ block, got %s", describe(tok))
		}
	}
}

// parseCompositeBlock handles @@unique([a, b]), @@index([a, b]), and
// @@id([a, b]).
func (p *Parser) parseCompositeBlock(model *ast.Model) error {
	marker := p.advance()

	if err := p.expectSymbol("("); err != nil {
		return err
	}
	if err := p.expectSymbol("["); err != nil {
		return err
	}
	var names []string
	for {
		nameTok, err := p.expectIdentifier("field name")
		if err != nil {
			return err
		}
		names = append(names, nameTok.Text)
		if p.matchSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectSymbol("]"); err != nil {
		return err
	}
	if err := p.expectSymbol(")"); err != nil {
		return err
	}

	switch marker.Text {
	case "unique":
		model.CombinedUniques = append(model.CombinedUniques, names)
	case "index":
		model.CombinedIndexes = append(model.CombinedIndexes, names)
	case "id":
		if model.CombinedPrimaryKey != nil {
			return p.failAt(marker, "model %s already has an @@id block", model.Name)
		}
		model.CombinedPrimaryKey = names
	}
	return nil
}

func (p *Parser) parseFieldDefinition() (*ast.Field, error) {
	nameTok := p.advance()
	field := &ast.Field{
		Name:   nameTok.Text,
		Line:   nameTok.Line,
		Column: nameTok.Column,
	}

	typeTok := p.current()
	switch {
	case typeTok.Kind == token.KindKeyword && typeTok.Text == "json":
		p.advance()
		field.Type = ast.FieldType{Scalar: ast.ScalarJSON}
		if p.matchSymbol("[") {
			p.advance()
			if err := p.expectSymbol("]"); err != nil {
				return nil, err
			}
			field.IsArray = true
		}
		blockTok := p.current()
		if blockTok.Kind != token.KindRawBlock {
			return nil, p.failAt(blockTok, "json field %s requires a { ... } type block", field.Name)
		}
		p.advance()
		obj, err := jsondef.Parse(blockTok.Text)
		if err != nil {
			return nil, p.failAt(blockTok, "invalid json type block: %v", err)
		}
		field.JSONType = obj
	case typeTok.Kind == token.KindKeyword && token.IsPrimitive(typeTok.Text):
		p.advance()
		field.Type = ast.FieldType{Scalar: ast.ScalarKindFromName(typeTok.Text)}
	case typeTok.Kind == token.KindIdentifier:
		// A relation target or custom declared type.
		p.advance()
		field.Type = ast.FieldType{Reference: typeTok.Text}
	default:
		return nil, p.failAt(typeTok, "expected type for field %s, got %s", field.Name, describe(typeTok))
	}

	if !field.IsArray && p.matchSymbol("[") {
		p.advance()
		if err := p.expectSymbol("]"); err != nil {
			return nil, err
		}
		field.IsArray = true
	}

	for p.matchSymbol("@") {
		if err := p.parseDecorator(field); err != nil {
			return nil, err
		}
	}
	return field, nil
}

func (p *Parser) parseDecorator(field *ast.Field) error {
	p.advance() // '@'
	nameTok, err := p.expectIdentifier("decorator name")
	if err != nil {
		return err
	}

	if kind, ok := ast.RelationKindFromName(nameTok.Text); ok {
		if field.Relation != nil {
			return p.failAt(nameTok, "field %s already has a relation decorator", field.Name)
		}
		rel := &ast.Relation{Kind: kind}
		if p.matchSymbol("(") {
			p.advance()
			fkTok, err := p.expectIdentifier("foreign key name")
			if err != nil {
				return err
			}
			rel.ForeignKey = fkTok.Text
			if err := p.expectSymbol(")"); err != nil {
				return err
			}
		}
		field.Relation = rel
		return nil
	}

	switch nameTok.Text {
	case "primary_key":
		field.PrimaryKey = true
	case "unique":
		field.Unique = true
	case "required":
		field.Required = true
	case "default":
		if field.Default != nil {
			return p.failAt(nameTok, "field %s already has a default", field.Name)
		}
		if err := p.expectSymbol("("); err != nil {
			return err
		}
		value, err := p.parseDefaultValue()
		if err != nil {
			return err
		}
		field.Default = value
		if err := p.expectSymbol(")"); err != nil {
			return err
		}
	default:
		return p.failAt(nameTok, "unknown decorator @%s", nameTok.Text)
	}
	return nil
}

// parseDefaultValue accepts a number literal, a string literal, the bare
// identifiers true/false, or one of the zero-argument generator calls
// autoincrement(), uuid(), now().
func (p *Parser) parseDefaultValue() (*ast.DefaultValue, error) {
	tok := p.current()
	switch tok.Kind {
	case token.KindNumber:
		p.advance()
		return ast.LiteralDefault(ast.LiteralNumber, tok.Text), nil
	case token.KindString:
		p.advance()
		return ast.LiteralDefault(ast.LiteralString, tok.Text), nil
	case token.KindIdentifier:
		switch tok.Text {
		case "true", "false":
			p.advance()
			return ast.LiteralDefault(ast.LiteralBoolean, tok.Text), nil
		}
		if fn, ok := ast.DefaultFuncFromName(tok.Text); ok {
			p.advance()
			if err := p.expectSymbol("("); err != nil {
				return nil, err
			}
			if err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			return ast.FunctionDefault(fn), nil
		}
	}
	return nil, p.failAt(tok, "invalid default value %s", describe(tok))
}

func (p *Parser) expectIdentifier(want string) (token.Token, error) {
	tok := p.current()
	if tok.Kind == token.KindIdentifier || (tok.Kind == token.KindKeyword && token.IsPrimitive(tok.Text)) {
		p.advance()
		return tok, nil
	}
	return tok, p.failAt(tok, "expected %s, got %s", want, describe(tok))
}

func (p *Parser) expectSymbol(text string) error {
	if !p.matchSymbol(text) {
		return p.failAt(p.current(), "expected %q, got %s", text, describe(p.current()))
	}
	p.advance()
	return nil
}

func (p *Parser) matchKeyword(text string) bool {
	tok := p.current()
	return tok.Kind == token.KindKeyword && tok.Text == text
}

func (p *Parser) matchSymbol(text string) bool {
	tok := p.current()
	return tok.Kind == token.KindSymbol && tok.Text == text
}

func (p *Parser) current() token.Token {
	if p.pos >= len(p.tokens) {
		return token.Token{Kind: token.KindEOF, File: p.path}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() token.Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) isEOF() bool {
	return p.current().Kind == token.KindEOF
}

// failAt builds the recoverable per-model error signal.
func (p *Parser) failAt(tok token.Token, format string, args ...any) error {
	return &modelError{diag: diagnostics.Errorf(diagnostics.SourceParser, p.diagPath(tok), tok.Line, tok.Column, format, args...)}
}

// errorAt records a diagnostic without aborting the current rule.
func (p *Parser) errorAt(tok token.Token, format string, args ...any) {
	p.diags = append(p.diags, diagnostics.Errorf(diagnostics.SourceParser, p.diagPath(tok), tok.Line, tok.Column, format, args...))
}

func (p *Parser) diagPath(tok token.Token) string {
	if tok.File != "" {
		return tok.File
	}
	return p.path
}

func describe(tok token.Token) string {
	switch tok.Kind {
	case token.KindEOF:
		return "end of input"
	case token.KindString:
		return "string literal"
	case token.KindRawBlock:
		return "json type block"
	default:
		if tok.Text == "" {
			return tok.Kind.String()
		}
		return "\"" + tok.Text + "\""
	}
}
