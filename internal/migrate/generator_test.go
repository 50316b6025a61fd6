package migrate

import (
	"errors"
	"strings"
	"testing"

	"github.com/electwix/schemaflow/internal/dialect"
	"github.com/electwix/schemaflow/internal/schema/ast"
	"github.com/electwix/schemaflow/internal/schema/parser"
	"github.com/electwix/schemaflow/internal/schema/token"
)

func mustParse(t *testing.T, source string) *ast.Schema {
	t.Helper()
	tokens, _, err := token.Scan("schema.sdl", []byte(source))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	schema, diags, err := parser.Parse("schema.sdl", tokens)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("parse diagnostics: %v", diags)
	}
	return schema
}

func generate(t *testing.T, d dialect.Dialect, previous, current *ast.Schema) *Script {
	t.Helper()
	script, err := NewGenerator(d, nil).Generate(previous, current)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return script
}

func TestGenerateOrdersTablesByDependency(t *testing.T) {
	// order is declared first but references customer, so customer must be
	// created first.
	schema := mustParse(t, `
model order {
  id int @primary_key @default(autoincrement())
  customer customer @many_to_one(customer_id)
}
model customer {
  id int @primary_key @default(autoincrement())
  name string @required
}
`)
	script := generate(t, dialect.Postgres, nil, schema)
	stmts := script.Executable()
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2:\n%s", len(stmts), script.Render())
	}
	if !strings.HasPrefix(stmts[0], "CREATE TABLE customer") {
		t.Fatalf("first statement: %q", stmts[0])
	}
	if !strings.HasPrefix(stmts[1], "CREATE TABLE order") {
		t.Fatalf("second statement: %q", stmts[1])
	}
	if !strings.Contains(stmts[1], "FOREIGN KEY (customer_id) REFERENCES customer(id)") {
		t.Fatalf("order table lacks foreign key:\n%s", stmts[1])
	}
	if !strings.Contains(stmts[1], "customer_id INTEGER") {
		t.Fatalf("foreign key column should use the stripped key type:\n%s", stmts[1])
	}
}

func TestGenerateCreateTableColumns(t *testing.T) {
	schema := mustParse(t, `
model user {
  id int @primary_key @default(autoincrement())
  email string @unique @required
  score float @default(1.5)
  bio string
  joined datetime @default(now())
}
`)
	script := generate(t, dialect.Postgres, nil, schema)
	sql := script.Executable()[0]
	for _, want := range []string{
		"id SERIAL PRIMARY KEY",
		"email TEXT UNIQUE NOT NULL",
		"score DOUBLE PRECISION DEFAULT 1.5",
		"bio TEXT",
		"joined TIMESTAMP DEFAULT CURRENT_TIMESTAMP",
	} {
		if !strings.Contains(sql, want) {
			t.Fatalf("missing %q in:\n%s", want, sql)
		}
	}
}

func TestGenerateStringDefaultQuoting(t *testing.T) {
	schema := mustParse(t, `
model post {
  id int @primary_key @default(autoincrement())
  status string @default("it's new") @required
}
`)
	script := generate(t, dialect.Postgres, nil, schema)
	sql := script.Executable()[0]
	if !strings.Contains(sql, "DEFAULT 'it''s new'") {
		t.Fatalf("string default not escaped:\n%s", sql)
	}
}

func TestGenerateCombinedConstraintsAndIndexes(t *testing.T) {
	schema := mustParse(t, `
model membership {
  user_id int
  team_id int
  role string @required
  @@id([user_id, team_id])
  @@unique([user_id, role])
  @@index([role])
}
`)
	script := generate(t, dialect.Postgres, nil, schema)
	stmts := script.Executable()
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2:\n%s", len(stmts), script.Render())
	}
	if !strings.Contains(stmts[0], "PRIMARY KEY (user_id, team_id)") {
		t.Fatalf("missing combined primary key:\n%s", stmts[0])
	}
	if !strings.Contains(stmts[0], "UNIQUE (user_id, role)") {
		t.Fatalf("missing combined unique:\n%s", stmts[0])
	}
	if stmts[1] != "CREATE INDEX idx_membership_role ON membership (role)" {
		t.Fatalf("index statement: %q", stmts[1])
	}
}

func TestGenerateJoinTableDedupedFromEitherSide(t *testing.T) {
	declaredBothSides := mustParse(t, `
model student {
  id int @primary_key @default(autoincrement())
  courses course[] @many_to_many
}
model course {
  id int @primary_key @default(autoincrement())
  students student[] @many_to_many
}
`)
	declaredOneSide := mustParse(t, `
model student {
  id int @primary_key @default(autoincrement())
  courses course[] @many_to_many
}
model course {
  id int @primary_key @default(autoincrement())
}
`)
	for _, schema := range []*ast.Schema{declaredBothSides, declaredOneSide} {
		script := generate(t, dialect.Postgres, nil, schema)
		joins := 0
		for _, sql := range script.Executable() {
			if strings.HasPrefix(sql, "CREATE TABLE _course_student") {
				joins++
				for _, want := range []string{
					"A_id INTEGER NOT NULL",
					"B_id INTEGER NOT NULL",
					"FOREIGN KEY (A_id) REFERENCES course(id) ON DELETE CASCADE",
					"FOREIGN KEY (B_id) REFERENCES student(id) ON DELETE CASCADE",
					"UNIQUE (A_id, B_id)",
				} {
					if !strings.Contains(sql, want) {
						t.Fatalf("join table missing %q:\n%s", want, sql)
					}
				}
			}
		}
		if joins != 1 {
			t.Fatalf("got %d join tables, want exactly 1:\n%s", joins, script.Render())
		}
	}
}

func TestGenerateRelationCollectionSideHasNoColumn(t *testing.T) {
	schema := mustParse(t, `
model user {
  id int @primary_key @default(autoincrement())
  posts post[] @one_to_many
}
model post {
  id int @primary_key @default(autoincrement())
  author user @many_to_one(author_id)
}
`)
	script := generate(t, dialect.Postgres, nil, schema)
	for _, sql := range script.Executable() {
		if strings.HasPrefix(sql, "CREATE TABLE user") && strings.Contains(sql, "posts") {
			t.Fatalf("collection side must not materialize a column:\n%s", sql)
		}
	}
}

func TestGenerateNoChangesWhenSchemasMatch(t *testing.T) {
	source := `
model user {
  id int @primary_key @default(autoincrement())
  email string @unique @required
}
`
	previous := mustParse(t, source)
	current := mustParse(t, source)
	_, err := NewGenerator(dialect.Postgres, nil).Generate(previous, current)
	if !errors.Is(err, ErrNoChanges) {
		t.Fatalf("got %v, want ErrNoChanges", err)
	}
}

func TestGenerateDiffAddsSingleColumn(t *testing.T) {
	previous := mustParse(t, `
model user {
  id int @primary_key @default(autoincrement())
  email string @required
}
`)
	current := mustParse(t, `
model user {
  id int @primary_key @default(autoincrement())
  email string @required
  age int
}
`)
	script := generate(t, dialect.Postgres, previous, current)
	stmts := script.Executable()
	if len(stmts) != 1 {
		t.Fatalf("got %d statements, want 1:\n%s", len(stmts), script.Render())
	}
	if stmts[0] != "ALTER TABLE user ADD COLUMN age INTEGER" {
		t.Fatalf("statement: %q", stmts[0])
	}
}

func TestGenerateDiffDropsRemovedModel(t *testing.T) {
	previous := mustParse(t, `
model user { id int @primary_key @default(autoincrement()) }
model session { id int @primary_key @default(autoincrement()) }
`)
	current := mustParse(t, `
model user { id int @primary_key @default(autoincrement()) }
`)
	script := generate(t, dialect.Postgres, previous, current)
	stmts := script.Executable()
	if len(stmts) != 1 || stmts[0] != "DROP TABLE session" {
		t.Fatalf("got %v, want single DROP TABLE session", stmts)
	}
}

func TestGenerateDiffNullability(t *testing.T) {
	previous := mustParse(t, `
model user {
  id int @primary_key @default(autoincrement())
  email string @required
}
`)
	current := mustParse(t, `
model user {
  id int @primary_key @default(autoincrement())
  email string
}
`)
	script := generate(t, dialect.Postgres, previous, current)
	stmts := script.Executable()
	if len(stmts) != 1 || stmts[0] != "ALTER TABLE user ALTER COLUMN email DROP NOT NULL" {
		t.Fatalf("got %v", stmts)
	}
}

func TestGenerateDiffEquivalentNumericDefaults(t *testing.T) {
	previous := mustParse(t, `
model product {
  id int @primary_key @default(autoincrement())
  price float @default(1.50) @required
}
`)
	current := mustParse(t, `
model product {
  id int @primary_key @default(autoincrement())
  price float @default(1.5) @required
}
`)
	_, err := NewGenerator(dialect.Postgres, nil).Generate(previous, current)
	if !errors.Is(err, ErrNoChanges) {
		t.Fatalf("numerically equal defaults must not churn: got %v", err)
	}
}

func TestGenerateDiffDefaultChange(t *testing.T) {
	previous := mustParse(t, `
model post {
  id int @primary_key @default(autoincrement())
  status string @default('draft') @required
}
`)
	current := mustParse(t, `
model post {
  id int @primary_key @default(autoincrement())
  status string @default('published') @required
}
`)
	script := generate(t, dialect.Postgres, previous, current)
	stmts := script.Executable()
	if len(stmts) != 1 || stmts[0] != "ALTER TABLE post ALTER COLUMN status SET DEFAULT 'published'" {
		t.Fatalf("got %v", stmts)
	}
}

func TestGenerateDiffSQLiteLimitsBecomeComments(t *testing.T) {
	previous := mustParse(t, `
model user {
  id int @primary_key @default(autoincrement())
  age int @required
  name string
}
`)
	current := mustParse(t, `
model user {
  id int @primary_key @default(autoincrement())
  age string @required
  name string @required
}
`)
	script := generate(t, dialect.SQLite, previous, current)
	comments := 0
	for _, stmt := range script.Statements {
		if stmt.Comment {
			comments++
			if !strings.Contains(stmt.SQL, "sqlite cannot alter") {
				t.Fatalf("comment text: %q", stmt.SQL)
			}
		}
	}
	if comments != 2 {
		t.Fatalf("got %d comments, want 2:\n%s", comments, script.Render())
	}
}

func TestGenerateDiffPrimaryKeyNullabilityGuard(t *testing.T) {
	previous := mustParse(t, `
model user {
  id int @primary_key @required
  name string
}
`)
	current := mustParse(t, `
model user {
  id int @primary_key
  name string @required
}
`)
	script := generate(t, dialect.Postgres, previous, current)
	var sawGuard bool
	for _, stmt := range script.Statements {
		if stmt.Comment && strings.Contains(stmt.SQL, "primary key column user.id") {
			sawGuard = true
		}
		if !stmt.Comment && strings.Contains(stmt.SQL, "id DROP NOT NULL") {
			t.Fatalf("must not weaken primary key nullability: %q", stmt.SQL)
		}
	}
	if !sawGuard {
		t.Fatalf("missing guard comment:\n%s", script.Render())
	}
}

func TestGenerateDiffJoinTableLifecycle(t *testing.T) {
	base := `
model student {
  id int @primary_key @default(autoincrement())
}
model course {
  id int @primary_key @default(autoincrement())
}
`
	withRelation := `
model student {
  id int @primary_key @default(autoincrement())
  courses course[] @many_to_many
}
model course {
  id int @primary_key @default(autoincrement())
}
`
	script := generate(t, dialect.Postgres, mustParse(t, base), mustParse(t, withRelation))
	stmts := script.Executable()
	if len(stmts) != 1 || !strings.HasPrefix(stmts[0], "CREATE TABLE _course_student") {
		t.Fatalf("got %v, want join table create", stmts)
	}

	script = generate(t, dialect.Postgres, mustParse(t, withRelation), mustParse(t, base))
	stmts = script.Executable()
	if len(stmts) != 1 || stmts[0] != "DROP TABLE _course_student" {
		t.Fatalf("got %v, want join table drop", stmts)
	}
}

func TestGenerateCycleFallsBackToDeclarationOrder(t *testing.T) {
	schema := mustParse(t, `
model chicken {
  id int @primary_key @default(autoincrement())
  egg egg @many_to_one(egg_id)
}
model egg {
  id int @primary_key @default(autoincrement())
  chicken chicken @many_to_one(chicken_id)
}
`)
	script := generate(t, dialect.Postgres, nil, schema)
	stmts := script.Executable()
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2", len(stmts))
	}
	if !strings.HasPrefix(stmts[0], "CREATE TABLE chicken") || !strings.HasPrefix(stmts[1], "CREATE TABLE egg") {
		t.Fatalf("cycle fallback order unexpected:\n%s", script.Render())
	}
}
