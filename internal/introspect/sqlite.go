package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// readSQLite walks the database file through sqlite's PRAGMA interface,
// which replaces information_schema on this engine.
func readSQLite(ctx context.Context, connString string) ([]*table, error) {
	dsn := connString
	if rest, ok := strings.CutPrefix(connString, "sqlite://"); ok {
		dsn = rest
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	defer db.Close()

	names, err := sqliteTableNames(ctx, db)
	if err != nil {
		return nil, err
	}
	tables := make([]*table, 0, len(names))
	for _, name := range names {
		t := &table{Name: name}
		if err := sqliteColumns(ctx, db, t); err != nil {
			return nil, err
		}
		if err := sqliteForeignKeys(ctx, db, t); err != nil {
			return nil, err
		}
		if err := sqliteUniques(ctx, db, t); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func sqliteTableNames(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func sqliteColumns(ctx context.Context, db *sql.DB, t *table) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", t.Name))
	if err != nil {
		return fmt.Errorf("table_info of %s: %w", t.Name, err)
	}
	defer rows.Close()

	var pkCols []struct {
		name string
		rank int
	}
	for rows.Next() {
		var (
			cid     int
			col     column
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &col.Name, &col.NativeType, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("scan table_info of %s: %w", t.Name, err)
		}
		col.Nullable = notNull == 0 && pk == 0
		col.Default = dflt.String
		if pk > 0 {
			pkCols = append(pkCols, struct {
				name string
				rank int
			}{col.Name, pk})
			// INTEGER PRIMARY KEY is the rowid alias and auto-assigns.
			if strings.EqualFold(col.NativeType, "INTEGER") && col.Default == "" {
				col.Default = "auto_increment"
			}
		}
		t.Columns = append(t.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for rank := 1; rank <= len(pkCols); rank++ {
		for _, pc := range pkCols {
			if pc.rank == rank {
				t.PrimaryKey = append(t.PrimaryKey, pc.name)
			}
		}
	}
	return nil
}

func sqliteForeignKeys(ctx context.Context, db *sql.DB, t *table) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%q)", t.Name))
	if err != nil {
		return fmt.Errorf("foreign_key_list of %s: %w", t.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, seq            int
			refTable, from     string
			to                 sql.NullString
			onUpdate, onDelete string
			match              string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return fmt.Errorf("scan foreign_key_list of %s: %w", t.Name, err)
		}
		refCol := to.String
		if refCol == "" {
			refCol = "id"
		}
		t.ForeignKeys = append(t.ForeignKeys, foreignKey{
			Column: from, RefTable: refTable, RefColumn: refCol, OnDeleteRules: onDelete,
		})
	}
	return rows.Err()
}

func sqliteUniques(ctx context.Context, db *sql.DB, t *table) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%q)", t.Name))
	if err != nil {
		return fmt.Errorf("index_list of %s: %w", t.Name, err)
	}
	type index struct {
		name   string
		unique bool
		origin string
	}
	var indexes []index
	for rows.Next() {
		var (
			seq     int
			idx     index
			uniq    int
			partial int
		)
		if err := rows.Scan(&seq, &idx.name, &uniq, &idx.origin, &partial); err != nil {
			rows.Close()
			return fmt.Errorf("scan index_list of %s: %w", t.Name, err)
		}
		idx.unique = uniq == 1
		indexes = append(indexes, idx)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, idx := range indexes {
		// Primary key indexes already surface through table_info.
		if !idx.unique || idx.origin == "pk" {
			continue
		}
		cols, err := sqliteIndexColumns(ctx, db, idx.name)
		if err != nil {
			return err
		}
		if len(cols) > 0 {
			t.Uniques = append(t.Uniques, cols)
		}
	}
	return nil
}

func sqliteIndexColumns(ctx context.Context, db *sql.DB, name string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%q)", name))
	if err != nil {
		return nil, fmt.Errorf("index_info of %s: %w", name, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var col sql.NullString
		if err := rows.Scan(&seqno, &cid, &col); err != nil {
			return nil, fmt.Errorf("scan index_info of %s: %w", name, err)
		}
		if col.Valid {
			cols = append(cols, col.String)
		}
	}
	return cols, rows.Err()
}
