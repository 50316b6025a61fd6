// Package introspect reads a live database's catalog and rebuilds it as a
// schema tree, so migration generation can diff declared state against what
// actually exists. The output uses the same conventions the generator emits:
// foreign key columns become relation fields and implicit join tables become
// many-to-many relations, which keeps a freshly migrated database diffing to
// no changes.
package introspect

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/electwix/schemaflow/internal/dialect"
	"github.com/electwix/schemaflow/internal/logging"
	"github.com/electwix/schemaflow/internal/schema/ast"
)

// Reader reads the catalog for one dialect.
type Reader struct {
	Dialect dialect.Dialect
	Logger  *slog.Logger
}

// NewReader constructs a catalog reader; a nil logger discards output.
func NewReader(d dialect.Dialect, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Reader{Dialect: d, Logger: logging.Component(logger, "introspect")}
}

// Read connects to the database and rebuilds its schema tree.
func (r *Reader) Read(ctx context.Context, connString string) (*ast.Schema, error) {
	var (
		tables []*table
		err    error
	)
	switch r.Dialect {
	case dialect.Postgres:
		tables, err = readPostgres(ctx, connString)
	case dialect.MySQL:
		tables, err = readMySQL(ctx, connString)
	case dialect.SQLite:
		tables, err = readSQLite(ctx, connString)
	default:
		return nil, fmt.Errorf("no introspector for dialect %s", r.Dialect)
	}
	if err != nil {
		return nil, err
	}
	r.Logger.Debug("read catalog", "tables", len(tables))
	return buildSchema(tables), nil
}

// table is the raw catalog shape shared by all backends.
type table struct {
	Name        string
	Columns     []column
	PrimaryKey  []string
	Uniques     [][]string
	ForeignKeys []foreignKey
}

type column struct {
	Name       string
	NativeType string
	Nullable   bool
	Default    string
	IsArray    bool
}

type foreignKey struct {
	Column        string
	RefTable      string
	RefColumn     string
	OnDeleteRules string
}

func (t *table) foreignKeyFor(col string) *foreignKey {
	for i := range t.ForeignKeys {
		if t.ForeignKeys[i].Column == col {
			return &t.ForeignKeys[i]
		}
	}
	return nil
}

// buildSchema converts raw catalog tables into a schema tree, folding
// implicit join tables back into many-to-many relations on their
// participants.
func buildSchema(tables []*table) *ast.Schema {
	schema := &ast.Schema{}
	byName := make(map[string]*table, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}

	var joins []*table
	for _, t := range tables {
		if isJoinTable(t) {
			joins = append(joins, t)
			continue
		}
		schema.Models = append(schema.Models, buildModel(t))
	}
	for _, j := range joins {
		attachManyToMany(schema, j)
	}
	return schema
}

func buildModel(t *table) *ast.Model {
	model := &ast.Model{Name: t.Name}
	singlePK := len(t.PrimaryKey) == 1
	for _, col := range t.Columns {
		field := buildField(t, col)
		if singlePK && col.Name == t.PrimaryKey[0] {
			field.PrimaryKey = true
		}
		model.Fields = append(model.Fields, field)
	}
	if len(t.PrimaryKey) > 1 {
		model.CombinedPrimaryKey = append([]string(nil), t.PrimaryKey...)
	}
	for _, cols := range t.Uniques {
		if len(cols) == 1 {
			if f := model.Field(fieldNameForColumn(t, cols[0])); f != nil {
				f.Unique = true
				continue
			}
		}
		model.CombinedUniques = append(model.CombinedUniques, cols)
	}
	return model
}

func buildField(t *table, col column) *ast.Field {
	field := &ast.Field{
		Required: !col.Nullable,
		IsArray:  col.IsArray,
	}
	if fk := t.foreignKeyFor(col.Name); fk != nil {
		field.Name = fieldNameForColumn(t, col.Name)
		field.Type = ast.FieldType{Reference: fk.RefTable}
		field.Relation = &ast.Relation{Kind: ast.RelationManyToOne, ForeignKey: col.Name}
		return field
	}
	field.Name = col.Name
	field.Type = ast.FieldType{Scalar: scalarFromNative(col.NativeType)}
	field.Default = defaultFromNative(col.Default, col.NativeType)
	return field
}

// fieldNameForColumn maps a physical column back to its declared field name.
// Foreign key columns drop the _id suffix when that does not collide with
// another column.
func fieldNameForColumn(t *table, col string) string {
	fk := t.foreignKeyFor(col)
	if fk == nil {
		return col
	}
	trimmed, ok := strings.CutSuffix(col, "_id")
	if !ok || trimmed == "" {
		return col
	}
	for _, other := range t.Columns {
		if other.Name == trimmed {
			return col
		}
	}
	return trimmed
}

// isJoinTable recognizes the implicit many-to-many shape: exactly two
// columns, both foreign keys, covered by one combined unique.
func isJoinTable(t *table) bool {
	if len(t.Columns) != 2 || len(t.ForeignKeys) != 2 || len(t.PrimaryKey) > 0 {
		return false
	}
	for _, u := range t.Uniques {
		if len(u) == 2 {
			return true
		}
	}
	return false
}

// attachManyToMany records a join table as a many-to-many field on its
// alphabetically first participant, preserving the table name so a rebuild
// produces the same DDL.
func attachManyToMany(schema *ast.Schema, t *table) {
	a, b := t.ForeignKeys[0].RefTable, t.ForeignKeys[1].RefTable
	if a > b {
		a, b = b, a
	}
	owner := schema.Lookup(a)
	other := schema.Lookup(b)
	if owner == nil || other == nil {
		return
	}
	name := b + "s"
	for owner.Field(name) != nil {
		name += "_rel"
	}
	owner.Fields = append(owner.Fields, &ast.Field{
		Name:     name,
		Type:     ast.FieldType{Reference: b},
		IsArray:  true,
		Relation: &ast.Relation{Kind: ast.RelationManyToMany, ForeignKey: t.Name},
	})
}

// scalarFromNative maps a native column type back onto the scalar
// vocabulary. Unknown types fall back to string storage.
func scalarFromNative(native string) ast.ScalarKind {
	n := strings.ToLower(native)
	if i := strings.IndexByte(n, '('); i >= 0 {
		n = n[:i]
	}
	switch n {
	case "integer", "int", "int4", "int8", "bigint", "smallint", "serial", "bigserial", "tinyint", "mediumint":
		return ast.ScalarInt
	case "double precision", "double", "float", "float4", "float8", "real", "numeric", "decimal":
		return ast.ScalarFloat
	case "boolean", "bool":
		return ast.ScalarBoolean
	case "json", "jsonb":
		return ast.ScalarJSON
	case "timestamp", "timestamp without time zone", "timestamp with time zone", "timestamptz", "datetime":
		return ast.ScalarDateTime
	case "date":
		return ast.ScalarDate
	default:
		return ast.ScalarString
	}
}

// defaultFromNative un-parses a catalog default expression back into the
// declared default vocabulary. Identity defaults surface as autoincrement()
// so round-tripped schemas compare equal.
func defaultFromNative(expr, native string) *ast.DefaultValue {
	if expr == "" {
		return nil
	}
	e := strings.ToLower(strings.TrimSpace(expr))
	switch {
	case strings.HasPrefix(e, "nextval("), strings.Contains(e, "auto_increment"):
		return ast.FunctionDefault(ast.FuncAutoincrement)
	case strings.HasPrefix(e, "current_timestamp"), strings.HasPrefix(e, "now()"), strings.HasPrefix(e, "datetime('now')"):
		return ast.FunctionDefault(ast.FuncNow)
	case strings.HasPrefix(e, "gen_random_uuid"), strings.HasPrefix(e, "uuid()"), strings.HasPrefix(e, "(uuid())"), strings.Contains(e, "randomblob(16)"):
		return ast.FunctionDefault(ast.FuncUUID)
	case e == "true" || e == "false":
		return ast.LiteralDefault(ast.LiteralBoolean, e)
	}

	// Postgres renders literal defaults with a cast suffix, e.g.
	// 'draft'::text. Strip it before classifying.
	if i := strings.Index(e, "::"); i >= 0 {
		e = e[:i]
	}
	if strings.HasPrefix(e, "'") && strings.HasSuffix(e, "'") && len(e) >= 2 {
		inner := strings.ReplaceAll(e[1:len(e)-1], "''", "'")
		return ast.LiteralDefault(ast.LiteralString, inner)
	}
	if isNumericLiteral(e) {
		return ast.LiteralDefault(ast.LiteralNumber, e)
	}
	switch scalarFromNative(native) {
	case ast.ScalarBoolean:
		return ast.LiteralDefault(ast.LiteralBoolean, e)
	default:
		return ast.LiteralDefault(ast.LiteralString, e)
	}
}

func isNumericLiteral(s string) bool {
	if s == "" {
		return false
	}
	dot := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '-' && i == 0:
		case r == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return true
}
