// Package dialect captures per-engine SQL vocabulary: scalar type names,
// default-function translations, and identity column syntax. Tables are
// enum-indexed arrays so a missing entry is a compile error rather than a
// silent map miss.
package dialect

import (
	"fmt"
	"strings"

	"github.com/electwix/schemaflow/internal/schema/ast"
)

// Dialect identifies a target SQL engine family.
type Dialect int

const (
	// Postgres targets PostgreSQL.
	Postgres Dialect = iota
	// MySQL targets MySQL/MariaDB.
	MySQL
	// SQLite targets SQLite.
	SQLite
	// Generic targets no particular engine; conservative ANSI-ish output.
	Generic

	// Count bounds enum-indexed tables.
	Count
)

// String returns the dialect name.
func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite"
	case Generic:
		return "generic"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

// FromScheme selects the dialect from a connection string's URL scheme.
// The connection string is required and its scheme must be recognized before
// any parsing of schema source begins.
func FromScheme(connString string) (Dialect, error) {
	if connString == "" {
		return Generic, fmt.Errorf("connection string is empty")
	}
	scheme, _, ok := strings.Cut(connString, "://")
	if !ok {
		return Generic, fmt.Errorf("connection string %q has no scheme", connString)
	}
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	case "sqlite", "file":
		return SQLite, nil
	default:
		return Generic, fmt.Errorf("unrecognized connection scheme %q", scheme)
	}
}

// scalarTypes maps scalar kind then dialect to the native column type.
var scalarTypes = [ast.ScalarCount][Count]string{
	ast.ScalarInvalid:  {Postgres: "TEXT", MySQL: "TEXT", SQLite: "TEXT", Generic: "TEXT"},
	ast.ScalarInt:      {Postgres: "INTEGER", MySQL: "INT", SQLite: "INTEGER", Generic: "INTEGER"},
	ast.ScalarString:   {Postgres: "TEXT", MySQL: "VARCHAR(255)", SQLite: "TEXT", Generic: "TEXT"},
	ast.ScalarFloat:    {Postgres: "DOUBLE PRECISION", MySQL: "DOUBLE", SQLite: "REAL", Generic: "DOUBLE PRECISION"},
	ast.ScalarBoolean:  {Postgres: "BOOLEAN", MySQL: "BOOLEAN", SQLite: "BOOLEAN", Generic: "BOOLEAN"},
	ast.ScalarJSON:     {Postgres: "JSONB", MySQL: "JSON", SQLite: "TEXT", Generic: "TEXT"},
	ast.ScalarDateTime: {Postgres: "TIMESTAMP", MySQL: "DATETIME", SQLite: "DATETIME", Generic: "TIMESTAMP"},
	ast.ScalarDate:     {Postgres: "DATE", MySQL: "DATE", SQLite: "DATE", Generic: "DATE"},
}

// ColumnType returns the native column type for a scalar kind.
func (d Dialect) ColumnType(kind ast.ScalarKind) string {
	if kind < 0 || kind >= ast.ScalarCount {
		kind = ast.ScalarInvalid
	}
	return scalarTypes[kind][d]
}

// ArrayColumnType returns the column type for an array-valued scalar field.
// Only PostgreSQL has native array columns; other engines store arrays in
// their json/text representation.
func (d Dialect) ArrayColumnType(kind ast.ScalarKind) string {
	if d == Postgres {
		return d.ColumnType(kind) + "[]"
	}
	return d.ColumnType(ast.ScalarJSON)
}

// IdentityColumn returns the self-contained column type for an
// autoincrementing primary key.
func (d Dialect) IdentityColumn(kind ast.ScalarKind) string {
	switch d {
	case Postgres:
		return "SERIAL PRIMARY KEY"
	case MySQL:
		return d.ColumnType(kind) + " AUTO_INCREMENT PRIMARY KEY"
	case SQLite:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	default:
		return d.ColumnType(kind) + " PRIMARY KEY"
	}
}

// defaultFuncs maps the generator-function vocabulary then dialect to the
// native default expression. Autoincrement has no DEFAULT form: it is
// rendered through IdentityColumn instead, so its entries are empty.
var defaultFuncs = [ast.DefaultFuncCount][Count]string{
	ast.FuncAutoincrement: {Postgres: "", MySQL: "", SQLite: "", Generic: ""},
	ast.FuncUUID: {
		Postgres: "gen_random_uuid()",
		MySQL:    "(UUID())",
		SQLite:   "(lower(hex(randomblob(16))))",
		Generic:  "uuid()",
	},
	ast.FuncNow: {
		Postgres: "CURRENT_TIMESTAMP",
		MySQL:    "NOW()",
		SQLite:   "DATETIME('now')",
		Generic:  "CURRENT_TIMESTAMP",
	},
}

// DefaultFuncExpr returns the native expression for a function-call default.
// The second result is false when the function has no DEFAULT-clause form
// in this dialect (autoincrement).
func (d Dialect) DefaultFuncExpr(fn ast.DefaultFunc) (string, bool) {
	if fn < 0 || fn >= ast.DefaultFuncCount {
		return "", false
	}
	expr := defaultFuncs[fn][d]
	return expr, expr != ""
}

// BaseType strips identity-specific markers from a mapped column type so a
// foreign-key column referencing an identity primary key gets a plain
// storage type.
func BaseType(columnType string) string {
	upper := strings.ToUpper(columnType)
	switch {
	case strings.HasPrefix(upper, "BIGSERIAL"):
		return "BIGINT"
	case strings.HasPrefix(upper, "SERIAL"):
		return "INTEGER"
	}
	for _, marker := range []string{" AUTO_INCREMENT", " AUTOINCREMENT", " PRIMARY KEY"} {
		if idx := strings.Index(upper, marker); idx >= 0 {
			columnType = columnType[:idx] + columnType[idx+len(marker):]
			upper = strings.ToUpper(columnType)
		}
	}
	return strings.TrimSpace(columnType)
}
