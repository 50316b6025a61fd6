package ast_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/electwix/schemaflow/internal/schema/ast"
	"github.com/electwix/schemaflow/internal/schema/parser"
	"github.com/electwix/schemaflow/internal/schema/token"
)

func parse(t *testing.T, source string) *ast.Schema {
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

// Formatting a parsed schema and parsing the output again must reproduce the
// same tree, positions aside.
func TestFormatRoundTrip(t *testing.T) {
	source := `
model user {
  id int @primary_key @default(autoincrement())
  email string @unique @required
  score float @default(1.5)
  posts post[] @one_to_many
}

model post {
  id int @primary_key @default(autoincrement())
  author user @many_to_one(author_id)
  author_id int
  meta json {
    title string,
    tags string[],
    extra? {
      depth int,
    },
  }
  @@unique([author_id, id])
  @@index([author_id])
}
`
	first := parse(t, source)
	second := parse(t, ast.Format(first))

	ignorePositions := cmp.FilterPath(func(p cmp.Path) bool {
		last := p.Last().String()
		return last == ".Line" || last == ".Column"
	}, cmp.Ignore())

	if diff := cmp.Diff(first, second, ignorePositions); diff != "" {
		t.Fatalf("round trip mismatch (-first +second):\n%s", diff)
	}
}

func TestFormatDefaults(t *testing.T) {
	source := `
model doc {
  id int @primary_key @default(autoincrement())
  token string @default(uuid())
  status string @default("draft")
  note string @default('it "quoted" me')
  score float @default(1.5)
  visible boolean @default(true)
  created datetime @default(now())
}
`
	first := parse(t, source)
	second := parse(t, ast.Format(first))

	want := first.Models[0]
	got := second.Models[0]
	for i, field := range want.Fields {
		if diff := cmp.Diff(field.Default, got.Fields[i].Default); diff != "" {
			t.Fatalf("field %s default mismatch:\n%s", field.Name, diff)
		}
	}
}

func TestFormatCombinedPrimaryKey(t *testing.T) {
	source := `
model membership {
  user_id int @required
  team_id int @required
  @@id([user_id, team_id])
}
`
	first := parse(t, source)
	second := parse(t, ast.Format(first))
	if diff := cmp.Diff(first.Models[0].CombinedPrimaryKey, second.Models[0].CombinedPrimaryKey); diff != "" {
		t.Fatalf("combined primary key mismatch:\n%s", diff)
	}
}
