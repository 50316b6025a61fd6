package dialect

import (
	"testing"

	"github.com/electwix/schemaflow/internal/schema/ast"
)

func TestFromScheme(t *testing.T) {
	cases := []struct {
		conn    string
		want    Dialect
		wantErr bool
	}{
		{"postgres://user:pw@localhost:5432/app", Postgres, false},
		{"postgresql://localhost/app", Postgres, false},
		{"mysql://root@tcp(localhost:3306)/app", MySQL, false},
		{"sqlite://app.db", SQLite, false},
		{"file://app.db", SQLite, false},
		{"oracle://localhost/app", 0, true},
		{"localhost:5432", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := FromScheme(tc.conn)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("FromScheme(%q): expected error", tc.conn)
			}
			continue
		}
		if err != nil {
			t.Fatalf("FromScheme(%q): %v", tc.conn, err)
		}
		if got != tc.want {
			t.Fatalf("FromScheme(%q): got %s, want %s", tc.conn, got, tc.want)
		}
	}
}

func TestColumnTypes(t *testing.T) {
	cases := []struct {
		dialect Dialect
		kind    ast.ScalarKind
		want    string
	}{
		{Postgres, ast.ScalarInt, "INTEGER"},
		{Postgres, ast.ScalarJSON, "JSONB"},
		{Postgres, ast.ScalarFloat, "DOUBLE PRECISION"},
		{MySQL, ast.ScalarString, "VARCHAR(255)"},
		{MySQL, ast.ScalarDateTime, "DATETIME"},
		{SQLite, ast.ScalarJSON, "TEXT"},
		{SQLite, ast.ScalarFloat, "REAL"},
		{Generic, ast.ScalarDateTime, "TIMESTAMP"},
	}
	for _, tc := range cases {
		if got := tc.dialect.ColumnType(tc.kind); got != tc.want {
			t.Fatalf("%s.ColumnType(%s): got %q, want %q", tc.dialect, tc.kind, got, tc.want)
		}
	}
}

func TestArrayColumnType(t *testing.T) {
	if got := Postgres.ArrayColumnType(ast.ScalarInt); got != "INTEGER[]" {
		t.Fatalf("postgres array type: got %q", got)
	}
	if got := MySQL.ArrayColumnType(ast.ScalarInt); got != "JSON" {
		t.Fatalf("mysql array type: got %q", got)
	}
	if got := SQLite.ArrayColumnType(ast.ScalarString); got != "TEXT" {
		t.Fatalf("sqlite array type: got %q", got)
	}
}

func TestIdentityColumn(t *testing.T) {
	if got := Postgres.IdentityColumn(ast.ScalarInt); got != "SERIAL PRIMARY KEY" {
		t.Fatalf("postgres identity: got %q", got)
	}
	if got := MySQL.IdentityColumn(ast.ScalarInt); got != "INT AUTO_INCREMENT PRIMARY KEY" {
		t.Fatalf("mysql identity: got %q", got)
	}
	if got := SQLite.IdentityColumn(ast.ScalarInt); got != "INTEGER PRIMARY KEY AUTOINCREMENT" {
		t.Fatalf("sqlite identity: got %q", got)
	}
}

func TestDefaultFuncExprNow(t *testing.T) {
	cases := []struct {
		dialect Dialect
		want    string
	}{
		{Postgres, "CURRENT_TIMESTAMP"},
		{MySQL, "NOW()"},
		{SQLite, "DATETIME('now')"},
		{Generic, "CURRENT_TIMESTAMP"},
	}
	for _, tc := range cases {
		got, ok := tc.dialect.DefaultFuncExpr(ast.FuncNow)
		if !ok || got != tc.want {
			t.Fatalf("%s now(): got (%q,%t), want %q", tc.dialect, got, ok, tc.want)
		}
	}
}

func TestDefaultFuncExprAutoincrementHasNoDefaultForm(t *testing.T) {
	for _, d := range []Dialect{Postgres, MySQL, SQLite, Generic} {
		if _, ok := d.DefaultFuncExpr(ast.FuncAutoincrement); ok {
			t.Fatalf("%s: autoincrement must not have a DEFAULT expression", d)
		}
	}
}

func TestBaseType(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"SERIAL PRIMARY KEY", "INTEGER"},
		{"BIGSERIAL PRIMARY KEY", "BIGINT"},
		{"INT AUTO_INCREMENT PRIMARY KEY", "INT"},
		{"INTEGER PRIMARY KEY AUTOINCREMENT", "INTEGER"},
		{"TEXT", "TEXT"},
		{"UUID PRIMARY KEY", "UUID"},
	}
	for _, tc := range cases {
		if got := BaseType(tc.in); got != tc.want {
			t.Fatalf("BaseType(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}
