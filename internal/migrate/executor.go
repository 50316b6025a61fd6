package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	_ "modernc.org/sqlite"

	"github.com/electwix/schemaflow/internal/dialect"
)

// Executor runs a statement list against a live database inside a single
// transaction. Implementations own the connection for the duration of the
// run and release it on Close.
type Executor interface {
	Apply(ctx context.Context, statements []string) error
	Close(ctx context.Context) error
}

// ApplyError reports the statement that failed during application, with the
// full script kept for operator inspection.
type ApplyError struct {
	Script    *Script
	Statement string
	Index     int
	Err       error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply statement %d (%s): %v", e.Index+1, e.Statement, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// OpenExecutor connects to the target database for the given dialect.
func OpenExecutor(ctx context.Context, d dialect.Dialect, connString string) (Executor, error) {
	switch d {
	case dialect.Postgres:
		conn, err := pgx.Connect(ctx, connString)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return &pgxExecutor{conn: conn}, nil
	case dialect.MySQL:
		db, err := sql.Open("mysql", stripScheme(connString, "mysql"))
		if err != nil {
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		return &sqlExecutor{db: db}, nil
	case dialect.SQLite:
		db, err := sql.Open("sqlite", sqliteDSN(connString))
		if err != nil {
			return nil, fmt.Errorf("connect sqlite: %w", err)
		}
		return &sqlExecutor{db: db}, nil
	}
	return nil, fmt.Errorf("no executor for dialect %s", d)
}

// pgxExecutor applies statements over a dedicated pgx connection.
type pgxExecutor struct {
	conn *pgx.Conn
}

func (e *pgxExecutor) Apply(ctx context.Context, statements []string) error {
	tx, err := e.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return &ApplyError{Statement: stmt, Index: i, Err: err}
		}
	}
	return tx.Commit(ctx)
}

func (e *pgxExecutor) Close(ctx context.Context) error {
	return e.conn.Close(ctx)
}

// sqlExecutor applies statements through database/sql, pinned to a single
// connection so session state and the transaction share a backend.
type sqlExecutor struct {
	db *sql.DB
}

func (e *sqlExecutor) Apply(ctx context.Context, statements []string) error {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return &ApplyError{Statement: stmt, Index: i, Err: err}
		}
	}
	return tx.Commit()
}

func (e *sqlExecutor) Close(context.Context) error {
	return e.db.Close()
}

// stripScheme removes a url-style scheme prefix that driver-native DSN
// parsers do not accept.
func stripScheme(connString, scheme string) string {
	return strings.TrimPrefix(connString, scheme+"://")
}

// sqliteDSN maps sqlite://path and file:path forms onto the driver's
// file-path DSN.
func sqliteDSN(connString string) string {
	if rest, ok := strings.CutPrefix(connString, "sqlite://"); ok {
		return rest
	}
	return connString
}
