package migrate

import (
	"errors"
	"strings"
)

// ErrNoChanges is returned by the generator when previous and current state
// already converge; callers must not execute an empty transaction.
var ErrNoChanges = errors.New("migrate: no changes")

// Statement is one line of a migration script. Comment statements carry
// operator-facing warnings and are never executed.
type Statement struct {
	SQL     string
	Comment bool
}

// Script is an ordered migration produced by the generator. The rendered
// form wraps every statement in one BEGIN/COMMIT block for operator
// inspection; the applier drives its own transaction and skips the wrapper.
type Script struct {
	Statements []Statement
}

// Executable returns the SQL statements to run, excluding comments.
func (s *Script) Executable() []string {
	out := make([]string, 0, len(s.Statements))
	for _, stmt := range s.Statements {
		if !stmt.Comment {
			out = append(out, stmt.SQL)
		}
	}
	return out
}

// Render returns the full script text.
func (s *Script) Render() string {
	var b strings.Builder
	b.WriteString("BEGIN;\n")
	for _, stmt := range s.Statements {
		if stmt.Comment {
			b.WriteString("-- ")
			b.WriteString(stmt.SQL)
			b.WriteString("\n")
			continue
		}
		b.WriteString(stmt.SQL)
		if !strings.HasSuffix(stmt.SQL, ";") {
			b.WriteString(";")
		}
		b.WriteString("\n")
	}
	b.WriteString("COMMIT;\n")
	return b.String()
}

func (s *Script) add(sql string) {
	s.Statements = append(s.Statements, Statement{SQL: sql})
}

func (s *Script) comment(text string) {
	s.Statements = append(s.Statements, Statement{SQL: text, Comment: true})
}

// hasExecutable reports whether any non-comment statement exists.
func (s *Script) hasExecutable() bool {
	for _, stmt := range s.Statements {
		if !stmt.Comment {
			return true
		}
	}
	return false
}
