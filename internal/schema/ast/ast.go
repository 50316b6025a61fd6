// Package ast defines the schema tree produced by the parser and, in
// structurally identical form, by database introspection. Every decorator
// fact is an explicit typed field populated during construction; there is no
// side metadata registry. Trees are built fresh per run and are not mutated
// after construction.
package ast

// Schema is the root node: an ordered sequence of model declarations.
// Model names are unique, case-sensitive.
type Schema struct {
	Models []*Model
}

// Lookup returns the model with the given name, or nil.
func (s *Schema) Lookup(name string) *Model {
	for _, m := range s.Models {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Model is one table-equivalent declaration.
type Model struct {
	Name   string
	Fields []*Field
	// CombinedUniques holds multi-column unique constraints from @@unique.
	CombinedUniques [][]string
	// CombinedIndexes holds multi-column index declarations from @@index.
	CombinedIndexes [][]string
	// CombinedPrimaryKey holds a table-level primary key from @@id.
	CombinedPrimaryKey []string

	Line   int
	Column int
}

// Field returns the field with the given name, or nil.
func (m *Model) Field(name string) *Field {
	for _, f := range m.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// PrimaryKeyField returns the field decorated as primary key, or nil.
func (m *Model) PrimaryKeyField() *Field {
	for _, f := range m.Fields {
		if f.PrimaryKey {
			return f
		}
	}
	return nil
}

// ScalarKind enumerates the primitive type vocabulary.
type ScalarKind int

const (
	// ScalarInvalid is the zero value for non-scalar field types.
	ScalarInvalid ScalarKind = iota
	// ScalarInt is a signed integer.
	ScalarInt
	// ScalarString is variable-length text.
	ScalarString
	// ScalarFloat is a double-precision float.
	ScalarFloat
	// ScalarBoolean is a boolean.
	ScalarBoolean
	// ScalarJSON is a json document column.
	ScalarJSON
	// ScalarDateTime is a date with time of day.
	ScalarDateTime
	// ScalarDate is a date without time of day.
	ScalarDate

	// ScalarCount bounds enum-indexed dialect tables.
	ScalarCount
)

var scalarNames = [ScalarCount]string{
	ScalarInvalid:  "",
	ScalarInt:      "int",
	ScalarString:   "string",
	ScalarFloat:    "float",
	ScalarBoolean:  "boolean",
	ScalarJSON:     "json",
	ScalarDateTime: "datetime",
	ScalarDate:     "date",
}

// String returns the schema-language spelling of the scalar kind.
func (k ScalarKind) String() string {
	if k < 0 || k >= ScalarCount {
		return "scalar(?)"
	}
	return scalarNames[k]
}

// ScalarKindFromName maps a primitive keyword to its kind; ScalarInvalid if
// the name is not a primitive.
func ScalarKindFromName(name string) ScalarKind {
	for k := ScalarInt; k < ScalarCount; k++ {
		if scalarNames[k] == name {
			return k
		}
	}
	return ScalarInvalid
}

// FieldType is either a primitive scalar or a named reference (a relation
// target model or a custom declared type).
type FieldType struct {
	Scalar ScalarKind
	// Reference holds the referenced name when Scalar is ScalarInvalid.
	Reference string
}

// IsScalar reports whether the type is a primitive scalar.
func (t FieldType) IsScalar() bool {
	return t.Scalar != ScalarInvalid
}

// String returns the source spelling of the type.
func (t FieldType) String() string {
	if t.IsScalar() {
		return t.Scalar.String()
	}
	return t.Reference
}

// RelationKind enumerates relation cardinalities.
type RelationKind int

const (
	// RelationOneToMany marks the "many" collection side.
	RelationOneToMany RelationKind = iota
	// RelationManyToOne marks the owning foreign-key side.
	RelationManyToOne
	// RelationOneToOne marks a unique foreign-key pairing.
	RelationOneToOne
	// RelationManyToMany marks an implicit join-table relation.
	RelationManyToMany
)

// String returns the decorator spelling of the relation kind.
func (k RelationKind) String() string {
	switch k {
	case RelationOneToMany:
		return "one_to_many"
	case RelationManyToOne:
		return "many_to_one"
	case RelationOneToOne:
		return "one_to_one"
	case RelationManyToMany:
		return "many_to_many"
	default:
		return "relation(?)"
	}
}

// RelationKindFromName maps a decorator name to its kind.
func RelationKindFromName(name string) (RelationKind, bool) {
	switch name {
	case "one_to_many":
		return RelationOneToMany, true
	case "many_to_one":
		return RelationManyToOne, true
	case "one_to_one":
		return RelationOneToOne, true
	case "many_to_many":
		return RelationManyToMany, true
	}
	return 0, false
}

// Relation carries the relation decorator facts for a field.
type Relation struct {
	Kind RelationKind
	// ForeignKey optionally names the foreign-key column (or, for
	// many_to_many, the join-table).
	ForeignKey string
}

// Field is one column-equivalent declaration, or a relation placeholder.
type Field struct {
	Name       string
	Type       FieldType
	IsArray    bool
	PrimaryKey bool
	Required   bool
	Unique     bool
	Default    *DefaultValue
	Relation   *Relation
	// JSONType describes the declared shape of a json field, when present.
	JSONType *JSONObject

	Line   int
	Column int
}

// JSONObject describes the declared shape of a json field: a sequence of
// named, optionally nullable or array-valued sub-fields, recursively
// nestable.
type JSONObject struct {
	Fields []*JSONField
}

// JSONField is one member of a JSONObject.
type JSONField struct {
	Name     string
	Type     string
	Optional bool
	IsArray  bool
	// Object is set instead of Type for nested object shapes.
	Object *JSONObject
}
