package token

import "strconv"

// Kind classifies a scanned token.
type Kind int

const (
	// KindInvalid represents an unrecognized character the parser must never
	// consume as valid syntax.
	KindInvalid Kind = iota
	// KindIdentifier represents bare identifiers: model names, field names,
	// decorator names, relation targets.
	KindIdentifier
	// KindKeyword represents reserved words: "model" and the primitive type
	// names.
	KindKeyword
	// KindNumber represents integer or decimal number literals.
	KindNumber
	// KindString represents quoted string literals with the quotes removed.
	KindString
	// KindSymbol represents punctuation: { } ( ) [ ] , : @
	KindSymbol
	// KindComposite represents a @@name block marker; Text holds the name
	// without the @@ prefix.
	KindComposite
	// KindRawBlock represents a verbatim { ... } block captured after a json
	// type keyword, nested braces included, not re-tokenized.
	KindRawBlock
	// KindEOF marks the logical end of the input.
	KindEOF
)

// Token is a unit emitted by the scanner with positional metadata. Line and
// Column are 1-based and point at the token's first character.
type Token struct {
	Kind   Kind
	Text   string
	File   string
	Line   int
	Column int
}

// KeywordModel is the model block introducer.
const KeywordModel = "model"

// Primitive scalar type keywords recognized by the scanner.
var primitives = map[string]struct{}{
	"int":      {},
	"string":   {},
	"float":    {},
	"boolean":  {},
	"json":     {},
	"datetime": {},
	"date":     {},
}

// IsKeyword reports whether s is a reserved word of the schema language.
func IsKeyword(s string) bool {
	if s == KeywordModel {
		return true
	}
	_, ok := primitives[s]
	return ok
}

// IsPrimitive reports whether s names a primitive scalar type.
func IsPrimitive(s string) bool {
	_, ok := primitives[s]
	return ok
}

// Composite markers accepted after @@.
var compositeMarkers = map[string]struct{}{
	"unique": {},
	"index":  {},
	"id":     {},
}

// IsCompositeMarker reports whether name is a valid @@ marker.
func IsCompositeMarker(name string) bool {
	_, ok := compositeMarkers[name]
	return ok
}

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "Invalid"
	case KindIdentifier:
		return "Identifier"
	case KindKeyword:
		return "Keyword"
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindSymbol:
		return "Symbol"
	case KindComposite:
		return "Composite"
	case KindRawBlock:
		return "RawBlock"
	case KindEOF:
		return "EOF"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}
