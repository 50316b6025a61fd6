package parser

import (
	"strings"
	"testing"

	"github.com/electwix/schemaflow/internal/diagnostics"
	"github.com/electwix/schemaflow/internal/schema/ast"
	"github.com/electwix/schemaflow/internal/schema/token"
)

func parseSource(t *testing.T, source string) (*ast.Schema, []diagnostics.Diagnostic) {
	t.Helper()
	tokens, warnings, err := token.Scan("schema.sdl", []byte(source))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("scan warnings: %v", warnings)
	}
	schema, diags, err := Parse("schema.sdl", tokens)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return schema, diags
}

func TestParseFullModel(t *testing.T) {
	source := `
model user {
  id int @primary_key @default(autoincrement())
  email string @unique @required
  score float @default(1.5)
  active boolean @default(true)
  nickname string
  joined datetime @default(now())
  posts post[] @one_to_many
}
`
	schema, diags := parseSource(t, source)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(schema.Models) != 1 {
		t.Fatalf("got %d models, want 1", len(schema.Models))
	}
	model := schema.Models[0]
	if model.Name != "user" {
		t.Fatalf("model name: got %q", model.Name)
	}
	if len(model.Fields) != 7 {
		t.Fatalf("got %d fields, want 7", len(model.Fields))
	}

	id := model.Field("id")
	if id == nil || !id.PrimaryKey {
		t.Fatalf("id field not parsed as primary key: %+v", id)
	}
	if !id.Default.IsFunction(ast.FuncAutoincrement) {
		t.Fatalf("id default: got %+v, want autoincrement()", id.Default)
	}

	email := model.Field("email")
	if !email.Unique || !email.Required {
		t.Fatalf("email decorators: %+v", email)
	}

	score := model.Field("score")
	if score.Default == nil || score.Default.Kind != ast.DefaultLiteral || score.Default.Literal != "1.5" {
		t.Fatalf("score default: %+v", score.Default)
	}

	active := model.Field("active")
	if active.Default == nil || active.Default.LiteralKind != ast.LiteralBoolean || active.Default.Literal != "true" {
		t.Fatalf("active default: %+v", active.Default)
	}

	posts := model.Field("posts")
	if posts.Relation == nil || posts.Relation.Kind != ast.RelationOneToMany {
		t.Fatalf("posts relation: %+v", posts.Relation)
	}
	if !posts.IsArray || posts.Type.Reference != "post" {
		t.Fatalf("posts type: %+v", posts.Type)
	}
}

func TestParseRelationForeignKey(t *testing.T) {
	source := `
model post {
  id int @primary_key @default(autoincrement())
  author user @many_to_one(author_id)
}
`
	schema, diags := parseSource(t, source)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	author := schema.Models[0].Field("author")
	if author.Relation == nil || author.Relation.Kind != ast.RelationManyToOne {
		t.Fatalf("author relation: %+v", author.Relation)
	}
	if author.Relation.ForeignKey != "author_id" {
		t.Fatalf("foreign key: got %q", author.Relation.ForeignKey)
	}
}

func TestParseCompositeBlocks(t *testing.T) {
	source := `
model membership {
  user_id int
  team_id int
  role string
  @@id([user_id, team_id])
  @@unique([user_id, role])
  @@index([role])
}
`
	schema, diags := parseSource(t, source)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	model := schema.Models[0]
	if got := strings.Join(model.CombinedPrimaryKey, ","); got != "user_id,team_id" {
		t.Fatalf("combined primary key: got %q", got)
	}
	if len(model.CombinedUniques) != 1 || strings.Join(model.CombinedUniques[0], ",") != "user_id,role" {
		t.Fatalf("combined uniques: %v", model.CombinedUniques)
	}
	if len(model.CombinedIndexes) != 1 || model.CombinedIndexes[0][0] != "role" {
		t.Fatalf("combined indexes: %v", model.CombinedIndexes)
	}
}

func TestParseJSONField(t *testing.T) {
	source := `
model doc {
  id int @primary_key @default(autoincrement())
  meta json {
    author string,
    tags string[],
    extra? {
      depth int,
    },
  }
}
`
	schema, diags := parseSource(t, source)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	meta := schema.Models[0].Field("meta")
	if meta.JSONType == nil {
		t.Fatalf("meta has no json type")
	}
	if len(meta.JSONType.Fields) != 3 {
		t.Fatalf("got %d json fields, want 3", len(meta.JSONType.Fields))
	}
	tags := meta.JSONType.Fields[1]
	if tags.Name != "tags" || !tags.IsArray || tags.Type != "string" {
		t.Fatalf("tags field: %+v", tags)
	}
	extra := meta.JSONType.Fields[2]
	if !extra.Optional || extra.Object == nil || len(extra.Object.Fields) != 1 {
		t.Fatalf("extra field: %+v", extra)
	}
}

func TestParseRecoversAtModelBoundary(t *testing.T) {
	source := `
model broken {
  id int @
}

model fine {
  id int @primary_key @default(autoincrement())
}
`
	schema, diags := parseSource(t, source)
	if len(diags) == 0 {
		t.Fatalf("expected diagnostics for broken model")
	}
	if len(schema.Models) != 1 || schema.Models[0].Name != "fine" {
		t.Fatalf("recovery did not keep the good model: %+v", schema.Models)
	}
	for _, d := range diags {
		if d.Severity != diagnostics.SeverityError {
			t.Fatalf("expected error severity, got %s", d.Severity)
		}
	}
}

func TestParseReportsEveryBrokenModel(t *testing.T) {
	source := `
model one { id }
model two { id }
model three {
  id int @primary_key
}
`
	schema, diags := parseSource(t, source)
	if len(diags) != 2 {
		t.Fatalf("got %d diagnostics, want 2: %v", len(diags), diags)
	}
	if len(schema.Models) != 1 || schema.Models[0].Name != "three" {
		t.Fatalf("surviving models: %+v", schema.Models)
	}
}

func TestParseUnknownDecorator(t *testing.T) {
	_, diags := parseSource(t, "model user { id int @banana }")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %v", len(diags), diags)
	}
	if !strings.Contains(diags[0].Message, "@banana") {
		t.Fatalf("diagnostic message: %q", diags[0].Message)
	}
}

func TestParseTopLevelGarbage(t *testing.T) {
	schema, diags := parseSource(t, "wat\nmodel user { id int }\n")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %v", len(diags), diags)
	}
	if len(schema.Models) != 1 {
		t.Fatalf("got %d models, want 1", len(schema.Models))
	}
}

func TestParseEmptyInput(t *testing.T) {
	schema, diags := parseSource(t, "")
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(schema.Models) != 0 {
		t.Fatalf("got %d models, want 0", len(schema.Models))
	}
}
