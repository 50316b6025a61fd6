// Package migrate turns schema trees into dialect-specific SQL and applies
// the result to a live database. Given only a current schema it emits a full
// CREATE script in foreign-key dependency order; given a previous schema as
// well it emits the minimal ALTER set that converges the two.
package migrate

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/electwix/schemaflow/internal/dialect"
	"github.com/electwix/schemaflow/internal/logging"
	"github.com/electwix/schemaflow/internal/schema/ast"
)

// Generator emits migration SQL for one target dialect.
type Generator struct {
	Dialect dialect.Dialect
	Logger  *slog.Logger
}

// NewGenerator constructs a generator; a nil logger discards output.
func NewGenerator(d dialect.Dialect, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Generator{Dialect: d, Logger: logging.Component(logger, "generator")}
}

// Generate produces the migration script converging previous into current.
// previous may be nil (or empty) for a fresh target. Returns ErrNoChanges
// when nothing needs to run.
func (g *Generator) Generate(previous, current *ast.Schema) (*Script, error) {
	script := &Script{}
	if previous == nil || len(previous.Models) == 0 {
		g.generateFull(script, current)
	} else {
		g.generateDiff(script, previous, current)
	}
	if len(script.Statements) == 0 {
		return nil, ErrNoChanges
	}
	return script, nil
}

// generateFull emits CREATE TABLE statements for every model in dependency
// order, then one join table per distinct many-to-many pair.
func (g *Generator) generateFull(script *Script, schema *ast.Schema) {
	ordered := g.sortByDependency(schema)
	for _, model := range ordered {
		script.add(g.createTable(schema, model))
		for _, cols := range model.CombinedIndexes {
			script.add(fmt.Sprintf("CREATE INDEX idx_%s_%s ON %s (%s)",
				model.Name, strings.Join(cols, "_"), model.Name, strings.Join(cols, ", ")))
		}
	}
	for _, join := range collectJoinTables(schema) {
		script.add(g.createJoinTable(join))
	}
}

// sortByDependency orders models so every many-to-one target precedes its
// referencer. Cycles are reported as a warning and the cyclic subset keeps
// declaration order.
func (g *Generator) sortByDependency(schema *ast.Schema) []*ast.Model {
	indegree := make(map[string]int, len(schema.Models))
	dependents := make(map[string][]string, len(schema.Models))
	for _, model := range schema.Models {
		indegree[model.Name] += 0
		for _, field := range model.Fields {
			if !isForeignKeyField(field) {
				continue
			}
			target := field.Type.Reference
			if target == model.Name || schema.Lookup(target) == nil {
				continue
			}
			indegree[model.Name]++
			dependents[target] = append(dependents[target], model.Name)
		}
	}

	ordered := make([]*ast.Model, 0, len(schema.Models))
	placed := make(map[string]bool, len(schema.Models))
	queue := make([]*ast.Model, 0, len(schema.Models))
	for _, model := range schema.Models {
		if indegree[model.Name] == 0 {
			queue = append(queue, model)
		}
	}
	for len(queue) > 0 {
		model := queue[0]
		queue = queue[1:]
		ordered = append(ordered, model)
		placed[model.Name] = true
		for _, dep := range dependents[model.Name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, schema.Lookup(dep))
			}
		}
	}
	if len(ordered) < len(schema.Models) {
		var cyclic []string
		for _, model := range schema.Models {
			if !placed[model.Name] {
				cyclic = append(cyclic, model.Name)
				ordered = append(ordered, model)
			}
		}
		g.Logger.Warn("foreign key cycle detected; falling back to declaration order", "models", strings.Join(cyclic, ", "))
	}
	return ordered
}

func (g *Generator) createTable(schema *ast.Schema, model *ast.Model) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", model.Name)

	var clauses []string
	for _, field := range model.Fields {
		if !fieldIsColumn(field) {
			continue
		}
		clauses = append(clauses, "    "+g.columnDef(schema, model, field))
	}
	if len(model.CombinedPrimaryKey) > 0 {
		clauses = append(clauses, fmt.Sprintf("    PRIMARY KEY (%s)", strings.Join(model.CombinedPrimaryKey, ", ")))
	}
	for _, cols := range model.CombinedUniques {
		clauses = append(clauses, fmt.Sprintf("    UNIQUE (%s)", strings.Join(cols, ", ")))
	}
	for _, field := range model.Fields {
		if !isForeignKeyField(field) {
			continue
		}
		target := schema.Lookup(field.Type.Reference)
		if target == nil {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("    FOREIGN KEY (%s) REFERENCES %s(%s)",
			foreignKeyColumn(field), target.Name, primaryKeyName(target)))
	}
	b.WriteString(strings.Join(clauses, ",\n"))
	b.WriteString("\n)")
	return b.String()
}

// columnDef renders one column clause: name, type, and inline constraint
// markers in a fixed order.
func (g *Generator) columnDef(schema *ast.Schema, model *ast.Model, field *ast.Field) string {
	parts := []string{columnName(field), g.columnType(schema, field)}

	identity := field.PrimaryKey && field.Default.IsFunction(ast.FuncAutoincrement)
	if field.PrimaryKey && !identity {
		parts = append(parts, "PRIMARY KEY")
	}
	if field.Unique && !field.PrimaryKey {
		parts = append(parts, "UNIQUE")
	}
	if field.Required && !field.PrimaryKey {
		parts = append(parts, "NOT NULL")
	}
	if field.Default != nil && !identity {
		if expr, ok := g.defaultExpr(field.Default); ok {
			parts = append(parts, "DEFAULT "+expr)
		}
	}
	return strings.Join(parts, " ")
}

// columnType maps a field to its native type, folding identity primary keys
// into the dialect's self-contained form.
func (g *Generator) columnType(schema *ast.Schema, field *ast.Field) string {
	if field.PrimaryKey && field.Default.IsFunction(ast.FuncAutoincrement) {
		return g.Dialect.IdentityColumn(field.Type.Scalar)
	}
	if isForeignKeyField(field) {
		// Foreign key columns take the referenced primary key's storage
		// type with identity markers stripped.
		target := schema.Lookup(field.Type.Reference)
		if target != nil {
			return dialect.BaseType(g.referencedKeyType(target))
		}
		return g.Dialect.ColumnType(ast.ScalarInt)
	}
	if !field.Type.IsScalar() {
		// Custom declared types have no native mapping; store as text.
		return g.Dialect.ColumnType(ast.ScalarString)
	}
	if field.IsArray {
		return g.Dialect.ArrayColumnType(field.Type.Scalar)
	}
	return g.Dialect.ColumnType(field.Type.Scalar)
}

// referencedKeyType returns the mapped type of a model's primary key column,
// identity syntax included.
func (g *Generator) referencedKeyType(model *ast.Model) string {
	pk := model.PrimaryKeyField()
	if pk == nil {
		return g.Dialect.ColumnType(ast.ScalarInt)
	}
	if pk.Default.IsFunction(ast.FuncAutoincrement) {
		return g.Dialect.IdentityColumn(pk.Type.Scalar)
	}
	return g.Dialect.ColumnType(pk.Type.Scalar)
}

func (g *Generator) defaultExpr(value *ast.DefaultValue) (string, bool) {
	if value.Kind == ast.DefaultFunction {
		return g.Dialect.DefaultFuncExpr(value.Func)
	}
	return literalSQL(value), true
}

// literalSQL renders a literal default in SQL form.
func literalSQL(value *ast.DefaultValue) string {
	switch value.LiteralKind {
	case ast.LiteralString:
		return "'" + strings.ReplaceAll(value.Literal, "'", "''") + "'"
	case ast.LiteralBoolean:
		return strings.ToUpper(value.Literal)
	default:
		return value.Literal
	}
}

// joinTable describes one deduplicated many-to-many pair.
type joinTable struct {
	Name string
	// A and B are the participant models, sorted by name.
	A, B *ast.Model
}

// collectJoinTables finds every many-to-many relation and deduplicates by
// the sorted participant pair, so the relation declared from either side
// yields exactly one table.
func collectJoinTables(schema *ast.Schema) []joinTable {
	seen := make(map[string]joinTable)
	var keys []string
	for _, model := range schema.Models {
		for _, field := range model.Fields {
			if field.Relation == nil || field.Relation.Kind != ast.RelationManyToMany {
				continue
			}
			target := schema.Lookup(field.Type.Reference)
			if target == nil {
				continue
			}
			a, b := model, target
			if a.Name > b.Name {
				a, b = b, a
			}
			key := a.Name + "\x00" + b.Name
			if existing, ok := seen[key]; ok {
				// An explicit name from either side wins over the default.
				if existing.Name == defaultJoinName(a, b) && field.Relation.ForeignKey != "" {
					existing.Name = field.Relation.ForeignKey
					seen[key] = existing
				}
				continue
			}
			name := field.Relation.ForeignKey
			if name == "" {
				name = defaultJoinName(a, b)
			}
			seen[key] = joinTable{Name: name, A: a, B: b}
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := make([]joinTable, 0, len(keys))
	for _, key := range keys {
		out = append(out, seen[key])
	}
	return out
}

func defaultJoinName(a, b *ast.Model) string {
	return "_" + a.Name + "_" + b.Name
}

// createJoinTable emits the implicit table for one many-to-many pair: two
// cascading foreign keys plus a combined unique over both columns.
func (g *Generator) createJoinTable(join joinTable) string {
	colA := "A_" + primaryKeyName(join.A)
	colB := "B_" + primaryKeyName(join.B)
	typeA := dialect.BaseType(g.referencedKeyType(join.A))
	typeB := dialect.BaseType(g.referencedKeyType(join.B))

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", join.Name)
	fmt.Fprintf(&b, "    %s %s NOT NULL,\n", colA, typeA)
	fmt.Fprintf(&b, "    %s %s NOT NULL,\n", colB, typeB)
	fmt.Fprintf(&b, "    FOREIGN KEY (%s) REFERENCES %s(%s) ON DELETE CASCADE,\n", colA, join.A.Name, primaryKeyName(join.A))
	fmt.Fprintf(&b, "    FOREIGN KEY (%s) REFERENCES %s(%s) ON DELETE CASCADE,\n", colB, join.B.Name, primaryKeyName(join.B))
	fmt.Fprintf(&b, "    UNIQUE (%s, %s)\n", colA, colB)
	b.WriteString(")")
	return b.String()
}

// fieldIsColumn reports whether a field materializes as a physical column.
// Collection sides of relations are virtual.
func fieldIsColumn(field *ast.Field) bool {
	if field.Relation == nil {
		return true
	}
	switch field.Relation.Kind {
	case ast.RelationManyToOne, ast.RelationOneToOne:
		return true
	default:
		return false
	}
}

// isForeignKeyField reports whether a field carries a single-column foreign
// key to another model.
func isForeignKeyField(field *ast.Field) bool {
	return field.Relation != nil && !field.Type.IsScalar() &&
		(field.Relation.Kind == ast.RelationManyToOne || field.Relation.Kind == ast.RelationOneToOne)
}

// columnName returns the physical column backing a field: the declared
// foreign key name for owning relation sides, else the field name.
func columnName(field *ast.Field) string {
	if isForeignKeyField(field) {
		return foreignKeyColumn(field)
	}
	return field.Name
}

func foreignKeyColumn(field *ast.Field) string {
	if field.Relation != nil && field.Relation.ForeignKey != "" {
		return field.Relation.ForeignKey
	}
	return field.Name + "_id"
}

// primaryKeyName returns the model's primary key column, defaulting to the
// convention column id.
func primaryKeyName(model *ast.Model) string {
	if pk := model.PrimaryKeyField(); pk != nil {
		return pk.Name
	}
	if len(model.CombinedPrimaryKey) == 1 {
		return model.CombinedPrimaryKey[0]
	}
	return "id"
}
