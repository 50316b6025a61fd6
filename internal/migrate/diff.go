package migrate

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/electwix/schemaflow/internal/dialect"
	"github.com/electwix/schemaflow/internal/schema/ast"
)

// generateDiff emits the statements converging previous into current:
// whole-table adds and drops first, then per-column changes for surviving
// tables.
func (g *Generator) generateDiff(script *Script, previous, current *ast.Schema) {
	for _, model := range g.sortByDependency(current) {
		if previous.Lookup(model.Name) == nil {
			script.add(g.createTable(current, model))
			for _, cols := range model.CombinedIndexes {
				script.add(fmt.Sprintf("CREATE INDEX idx_%s_%s ON %s (%s)",
					model.Name, strings.Join(cols, "_"), model.Name, strings.Join(cols, ", ")))
			}
		}
	}
	for _, model := range previous.Models {
		if current.Lookup(model.Name) == nil {
			script.add("DROP TABLE " + model.Name)
		}
	}
	for _, model := range current.Models {
		before := previous.Lookup(model.Name)
		if before == nil {
			continue
		}
		g.diffModel(script, previous, current, before, model)
	}
	g.diffJoinTables(script, previous, current)
}

func (g *Generator) diffModel(script *Script, prevSchema, curSchema *ast.Schema, before, after *ast.Model) {
	for _, field := range after.Fields {
		if !fieldIsColumn(field) {
			continue
		}
		prior := before.Field(field.Name)
		if prior == nil || !fieldIsColumn(prior) {
			script.add(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s",
				after.Name, g.columnDef(curSchema, after, field)))
			continue
		}
		g.diffColumn(script, prevSchema, curSchema, after, prior, field)
	}
	for _, field := range before.Fields {
		if !fieldIsColumn(field) {
			continue
		}
		if cur := after.Field(field.Name); cur == nil || !fieldIsColumn(cur) {
			script.add(fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", after.Name, columnName(field)))
		}
	}
}

// diffColumn compares one surviving column property by property. Each change
// becomes its own statement so a failure points at the exact alteration.
func (g *Generator) diffColumn(script *Script, prevSchema, curSchema *ast.Schema, model *ast.Model, before, after *ast.Field) {
	table := model.Name
	column := columnName(after)

	priorType := g.columnType(prevSchema, before)
	nextType := g.columnType(curSchema, after)
	if dialect.BaseType(priorType) != dialect.BaseType(nextType) {
		g.alterColumnType(script, table, column, nextType)
	}

	if before.Required != after.Required {
		if after.PrimaryKey && !after.Required {
			// Primary key columns stay NOT NULL regardless of the source
			// declaration; surface the conflict instead of emitting a
			// statement the database would reject.
			script.comment(fmt.Sprintf("skipped: cannot drop NOT NULL from primary key column %s.%s", table, column))
		} else if after.Required {
			g.alterNullability(script, table, column, nextType, true)
		} else {
			g.alterNullability(script, table, column, nextType, false)
		}
	}

	if !g.defaultsEqual(before.Default, after.Default) {
		g.alterDefault(script, table, column, after.Default)
	}

	if before.Unique != after.Unique {
		if after.Unique {
			script.add(fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s_%s_key UNIQUE (%s)", table, table, column, column))
		} else {
			script.add(fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s_%s_key", table, table, column))
		}
	}
}

func (g *Generator) alterColumnType(script *Script, table, column, nextType string) {
	base := dialect.BaseType(nextType)
	switch g.Dialect {
	case dialect.MySQL:
		script.add(fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s %s", table, column, base))
	case dialect.SQLite:
		script.comment(fmt.Sprintf("skipped: sqlite cannot alter column type of %s.%s to %s; recreate the table manually", table, column, base))
	default:
		script.add(fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", table, column, base))
	}
}

func (g *Generator) alterNullability(script *Script, table, column, nextType string, required bool) {
	base := dialect.BaseType(nextType)
	switch g.Dialect {
	case dialect.MySQL:
		null := "NULL"
		if required {
			null = "NOT NULL"
		}
		script.add(fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s %s %s", table, column, base, null))
	case dialect.SQLite:
		script.comment(fmt.Sprintf("skipped: sqlite cannot alter nullability of %s.%s; recreate the table manually", table, column))
	default:
		verb := "DROP NOT NULL"
		if required {
			verb = "SET NOT NULL"
		}
		script.add(fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s", table, column, verb))
	}
}

func (g *Generator) alterDefault(script *Script, table, column string, next *ast.DefaultValue) {
	if g.Dialect == dialect.SQLite {
		script.comment(fmt.Sprintf("skipped: sqlite cannot alter default of %s.%s; recreate the table manually", table, column))
		return
	}
	if next == nil {
		script.add(fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", table, column))
		return
	}
	expr, ok := g.defaultExpr(next)
	if !ok {
		return
	}
	script.add(fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s", table, column, expr))
}

// defaultsEqual compares two defaults for migration purposes. Numeric
// literals compare by value so 1.50 and 1.5 do not churn a spurious ALTER.
func (g *Generator) defaultsEqual(a, b *ast.DefaultValue) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == ast.DefaultFunction {
		return a.Func == b.Func
	}
	if a.LiteralKind != b.LiteralKind {
		return false
	}
	if a.LiteralKind == ast.LiteralNumber {
		da, errA := decimal.NewFromString(a.Literal)
		db, errB := decimal.NewFromString(b.Literal)
		if errA == nil && errB == nil {
			return da.Equal(db)
		}
	}
	return a.Literal == b.Literal
}

// diffJoinTables creates or drops implicit many-to-many tables whose pair
// appeared or disappeared between the two schemas. Renames of a surviving
// pair are treated as drop and create.
func (g *Generator) diffJoinTables(script *Script, previous, current *ast.Schema) {
	prior := make(map[string]joinTable)
	for _, join := range collectJoinTables(previous) {
		prior[join.A.Name+"\x00"+join.B.Name] = join
	}
	next := make(map[string]joinTable)
	for _, join := range collectJoinTables(current) {
		next[join.A.Name+"\x00"+join.B.Name] = join
	}
	for _, join := range collectJoinTables(previous) {
		key := join.A.Name + "\x00" + join.B.Name
		if existing, ok := next[key]; !ok || existing.Name != join.Name {
			script.add("DROP TABLE " + join.Name)
		}
	}
	for _, join := range collectJoinTables(current) {
		key := join.A.Name + "\x00" + join.B.Name
		if existing, ok := prior[key]; !ok || existing.Name != join.Name {
			script.add(g.createJoinTable(join))
		}
	}
}
