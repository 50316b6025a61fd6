package ast

// DefaultKind tags the closed default-value variant: a default is either a
// literal matching the field's scalar type or a zero-argument function call
// from a fixed vocabulary, never both.
type DefaultKind int

const (
	// DefaultLiteral marks a number, string, or boolean literal.
	DefaultLiteral DefaultKind = iota
	// DefaultFunction marks a generator function call.
	DefaultFunction
)

// LiteralKind classifies a literal default.
type LiteralKind int

const (
	// LiteralNumber is an integer or decimal literal.
	LiteralNumber LiteralKind = iota
	// LiteralString is a quoted string literal.
	LiteralString
	// LiteralBoolean is true or false.
	LiteralBoolean
)

// DefaultFunc enumerates the default-generator vocabulary.
type DefaultFunc int

const (
	// FuncAutoincrement requests a database identity/sequence value.
	FuncAutoincrement DefaultFunc = iota
	// FuncUUID requests a random UUID.
	FuncUUID
	// FuncNow requests the current timestamp.
	FuncNow

	// DefaultFuncCount bounds enum-indexed dialect tables.
	DefaultFuncCount
)

// String returns the source spelling of the function name.
func (f DefaultFunc) String() string {
	switch f {
	case FuncAutoincrement:
		return "autoincrement"
	case FuncUUID:
		return "uuid"
	case FuncNow:
		return "now"
	default:
		return "func(?)"
	}
}

// DefaultFuncFromName maps a call name to the vocabulary.
func DefaultFuncFromName(name string) (DefaultFunc, bool) {
	switch name {
	case "autoincrement":
		return FuncAutoincrement, true
	case "uuid":
		return FuncUUID, true
	case "now":
		return FuncNow, true
	}
	return 0, false
}

// DefaultValue is the tagged default representation.
type DefaultValue struct {
	Kind DefaultKind

	// Literal fields, valid when Kind == DefaultLiteral.
	LiteralKind LiteralKind
	// Literal holds the literal text: digits for numbers, unquoted content
	// for strings, "true"/"false" for booleans.
	Literal string

	// Func is valid when Kind == DefaultFunction.
	Func DefaultFunc
}

// LiteralDefault constructs a literal default.
func LiteralDefault(kind LiteralKind, text string) *DefaultValue {
	return &DefaultValue{Kind: DefaultLiteral, LiteralKind: kind, Literal: text}
}

// FunctionDefault constructs a function-call default.
func FunctionDefault(fn DefaultFunc) *DefaultValue {
	return &DefaultValue{Kind: DefaultFunction, Func: fn}
}

// IsFunction reports whether the default calls the named generator.
func (d *DefaultValue) IsFunction(fn DefaultFunc) bool {
	return d != nil && d.Kind == DefaultFunction && d.Func == fn
}
