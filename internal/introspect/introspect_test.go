package introspect

import (
	"testing"

	"github.com/electwix/schemaflow/internal/schema/ast"
)

func TestBuildSchemaBasicTable(t *testing.T) {
	tables := []*table{{
		Name: "user",
		Columns: []column{
			{Name: "id", NativeType: "integer", Default: "nextval('user_id_seq'::regclass)"},
			{Name: "email", NativeType: "text"},
			{Name: "bio", NativeType: "text", Nullable: true},
			{Name: "joined", NativeType: "timestamp without time zone", Default: "CURRENT_TIMESTAMP"},
		},
		PrimaryKey: []string{"id"},
		Uniques:    [][]string{{"email"}},
	}}
	schema := buildSchema(tables)
	if len(schema.Models) != 1 {
		t.Fatalf("got %d models, want 1", len(schema.Models))
	}
	model := schema.Models[0]

	id := model.Field("id")
	if id == nil || !id.PrimaryKey {
		t.Fatalf("id not rebuilt as primary key: %+v", id)
	}
	if !id.Default.IsFunction(ast.FuncAutoincrement) {
		t.Fatalf("sequence default not mapped to autoincrement: %+v", id.Default)
	}

	email := model.Field("email")
	if !email.Unique || !email.Required {
		t.Fatalf("email flags: %+v", email)
	}
	if email.Type.Scalar != ast.ScalarString {
		t.Fatalf("email scalar: %v", email.Type.Scalar)
	}

	bio := model.Field("bio")
	if bio.Required {
		t.Fatalf("nullable column rebuilt as required")
	}

	joined := model.Field("joined")
	if joined.Type.Scalar != ast.ScalarDateTime || !joined.Default.IsFunction(ast.FuncNow) {
		t.Fatalf("joined field: %+v", joined)
	}
}

func TestBuildSchemaForeignKeyBecomesRelation(t *testing.T) {
	tables := []*table{
		{
			Name:       "user",
			Columns:    []column{{Name: "id", NativeType: "integer"}},
			PrimaryKey: []string{"id"},
		},
		{
			Name: "post",
			Columns: []column{
				{Name: "id", NativeType: "integer"},
				{Name: "author_id", NativeType: "integer"},
			},
			PrimaryKey:  []string{"id"},
			ForeignKeys: []foreignKey{{Column: "author_id", RefTable: "user", RefColumn: "id"}},
		},
	}
	schema := buildSchema(tables)
	post := schema.Lookup("post")

	author := post.Field("author")
	if author == nil {
		t.Fatalf("foreign key column not rebuilt as relation field: %+v", post.Fields)
	}
	if author.Relation == nil || author.Relation.Kind != ast.RelationManyToOne {
		t.Fatalf("author relation: %+v", author.Relation)
	}
	if author.Relation.ForeignKey != "author_id" {
		t.Fatalf("foreign key column: %q", author.Relation.ForeignKey)
	}
	if author.Type.Reference != "user" {
		t.Fatalf("relation target: %q", author.Type.Reference)
	}
}

func TestBuildSchemaForeignKeyNameCollisionKeepsColumnName(t *testing.T) {
	tables := []*table{
		{
			Name:       "user",
			Columns:    []column{{Name: "id", NativeType: "integer"}},
			PrimaryKey: []string{"id"},
		},
		{
			Name: "review",
			Columns: []column{
				{Name: "id", NativeType: "integer"},
				{Name: "author", NativeType: "text"},
				{Name: "author_id", NativeType: "integer"},
			},
			PrimaryKey:  []string{"id"},
			ForeignKeys: []foreignKey{{Column: "author_id", RefTable: "user", RefColumn: "id"}},
		},
	}
	schema := buildSchema(tables)
	review := schema.Lookup("review")
	if review.Field("author_id") == nil {
		t.Fatalf("colliding trim must keep the column name: %+v", review.Fields)
	}
}

func TestBuildSchemaJoinTableDetection(t *testing.T) {
	tables := []*table{
		{Name: "course", Columns: []column{{Name: "id", NativeType: "integer"}}, PrimaryKey: []string{"id"}},
		{Name: "student", Columns: []column{{Name: "id", NativeType: "integer"}}, PrimaryKey: []string{"id"}},
		{
			Name: "_course_student",
			Columns: []column{
				{Name: "A_id", NativeType: "integer"},
				{Name: "B_id", NativeType: "integer"},
			},
			Uniques: [][]string{{"A_id", "B_id"}},
			ForeignKeys: []foreignKey{
				{Column: "A_id", RefTable: "course", RefColumn: "id"},
				{Column: "B_id", RefTable: "student", RefColumn: "id"},
			},
		},
	}
	schema := buildSchema(tables)
	if schema.Lookup("_course_student") != nil {
		t.Fatalf("join table must not surface as a model")
	}
	course := schema.Lookup("course")
	var rel *ast.Field
	for _, f := range course.Fields {
		if f.Relation != nil && f.Relation.Kind == ast.RelationManyToMany {
			rel = f
		}
	}
	if rel == nil {
		t.Fatalf("many-to-many relation not rebuilt: %+v", course.Fields)
	}
	if rel.Type.Reference != "student" || rel.Relation.ForeignKey != "_course_student" {
		t.Fatalf("relation detail: %+v", rel)
	}
}

func TestBuildSchemaJoinTableFieldNameCollision(t *testing.T) {
	// The owner already has a physical column named after the synthesized
	// collection field.
	tables := []*table{
		{
			Name: "course",
			Columns: []column{
				{Name: "id", NativeType: "integer"},
				{Name: "students", NativeType: "integer"},
			},
			PrimaryKey: []string{"id"},
		},
		{Name: "student", Columns: []column{{Name: "id", NativeType: "integer"}}, PrimaryKey: []string{"id"}},
		{
			Name: "_course_student",
			Columns: []column{
				{Name: "A_id", NativeType: "integer"},
				{Name: "B_id", NativeType: "integer"},
			},
			Uniques: [][]string{{"A_id", "B_id"}},
			ForeignKeys: []foreignKey{
				{Column: "A_id", RefTable: "course", RefColumn: "id"},
				{Column: "B_id", RefTable: "student", RefColumn: "id"},
			},
		},
	}
	schema := buildSchema(tables)
	course := schema.Lookup("course")
	var rel *ast.Field
	for _, f := range course.Fields {
		if f.Relation != nil && f.Relation.Kind == ast.RelationManyToMany {
			rel = f
		}
	}
	if rel == nil {
		t.Fatalf("many-to-many relation not rebuilt: %+v", course.Fields)
	}
	if rel.Name != "students_rel" {
		t.Fatalf("field name: got %q, want %q", rel.Name, "students_rel")
	}
	if scalar := course.Field("students"); scalar == nil || scalar.Relation != nil {
		t.Fatalf("existing column must keep its field: %+v", scalar)
	}
}

func TestScalarFromNative(t *testing.T) {
	cases := []struct {
		native string
		want   ast.ScalarKind
	}{
		{"integer", ast.ScalarInt},
		{"bigint", ast.ScalarInt},
		{"double precision", ast.ScalarFloat},
		{"numeric(10,2)", ast.ScalarFloat},
		{"boolean", ast.ScalarBoolean},
		{"jsonb", ast.ScalarJSON},
		{"timestamp with time zone", ast.ScalarDateTime},
		{"DATETIME", ast.ScalarDateTime},
		{"date", ast.ScalarDate},
		{"character varying", ast.ScalarString},
		{"blob", ast.ScalarString},
	}
	for _, tc := range cases {
		if got := scalarFromNative(tc.native); got != tc.want {
			t.Fatalf("scalarFromNative(%q): got %v, want %v", tc.native, got, tc.want)
		}
	}
}

func TestDefaultFromNative(t *testing.T) {
	autoinc := defaultFromNative("nextval('user_id_seq'::regclass)", "integer")
	if !autoinc.IsFunction(ast.FuncAutoincrement) {
		t.Fatalf("sequence: %+v", autoinc)
	}

	now := defaultFromNative("now()", "timestamp")
	if !now.IsFunction(ast.FuncNow) {
		t.Fatalf("now(): %+v", now)
	}

	uuid := defaultFromNative("gen_random_uuid()", "uuid")
	if !uuid.IsFunction(ast.FuncUUID) {
		t.Fatalf("gen_random_uuid(): %+v", uuid)
	}

	str := defaultFromNative("'draft'::text", "text")
	if str.Kind != ast.DefaultLiteral || str.LiteralKind != ast.LiteralString || str.Literal != "draft" {
		t.Fatalf("cast string literal: %+v", str)
	}

	num := defaultFromNative("1.5", "numeric")
	if num.LiteralKind != ast.LiteralNumber || num.Literal != "1.5" {
		t.Fatalf("numeric literal: %+v", num)
	}

	boolean := defaultFromNative("true", "boolean")
	if boolean.LiteralKind != ast.LiteralBoolean || boolean.Literal != "true" {
		t.Fatalf("boolean literal: %+v", boolean)
	}

	if got := defaultFromNative("", "text"); got != nil {
		t.Fatalf("empty default: %+v", got)
	}
}
