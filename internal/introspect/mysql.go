package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
)

// readMySQL walks the connection's default database through
// information_schema.
func readMySQL(ctx context.Context, connString string) ([]*table, error) {
	db, err := sql.Open("mysql", strings.TrimPrefix(connString, "mysql://"))
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	defer db.Close()

	names, err := mysqlTableNames(ctx, db)
	if err != nil {
		return nil, err
	}
	tables := make([]*table, 0, len(names))
	for _, name := range names {
		t := &table{Name: name}
		if err := mysqlColumns(ctx, db, t); err != nil {
			return nil, err
		}
		if err := mysqlConstraints(ctx, db, t); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func mysqlTableNames(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
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

func mysqlColumns(ctx context.Context, db *sql.DB, t *table) error {
	rows, err := db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable, COALESCE(column_default, ''), extra
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`, t.Name)
	if err != nil {
		return fmt.Errorf("list columns of %s: %w", t.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var col column
		var nullable, extra string
		if err := rows.Scan(&col.Name, &col.NativeType, &nullable, &col.Default, &extra); err != nil {
			return fmt.Errorf("scan column of %s: %w", t.Name, err)
		}
		col.Nullable = nullable == "YES"
		if strings.Contains(strings.ToLower(extra), "auto_increment") {
			col.Default = "auto_increment"
		}
		t.Columns = append(t.Columns, col)
	}
	return rows.Err()
}

func mysqlConstraints(ctx context.Context, db *sql.DB, t *table) error {
	rows, err := db.QueryContext(ctx, `
		SELECT kcu.constraint_name, tc.constraint_type, kcu.column_name,
		       COALESCE(kcu.referenced_table_name, ''), COALESCE(kcu.referenced_column_name, '')
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = tc.constraint_name
		 AND kcu.table_schema = tc.table_schema
		 AND kcu.table_name = tc.table_name
		WHERE tc.table_schema = DATABASE() AND tc.table_name = ?
		ORDER BY kcu.constraint_name, kcu.ordinal_position`, t.Name)
	if err != nil {
		return fmt.Errorf("list constraints of %s: %w", t.Name, err)
	}
	defer rows.Close()

	uniques := make(map[string][]string)
	var uniqueNames []string
	for rows.Next() {
		var name, kind, col, refTable, refCol string
		if err := rows.Scan(&name, &kind, &col, &refTable, &refCol); err != nil {
			return fmt.Errorf("scan constraint of %s: %w", t.Name, err)
		}
		switch kind {
		case "PRIMARY KEY":
			t.PrimaryKey = append(t.PrimaryKey, col)
		case "UNIQUE":
			if _, ok := uniques[name]; !ok {
				uniqueNames = append(uniqueNames, name)
			}
			uniques[name] = append(uniques[name], col)
		case "FOREIGN KEY":
			t.ForeignKeys = append(t.ForeignKeys, foreignKey{
				Column: col, RefTable: refTable, RefColumn: refCol,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, name := range uniqueNames {
		t.Uniques = append(t.Uniques, uniques[name])
	}
	return nil
}
