package introspect

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// readPostgres walks the public schema through information_schema over a
// dedicated pgx connection.
func readPostgres(ctx context.Context, connString string) ([]*table, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close(ctx)

	names, err := postgresTableNames(ctx, conn)
	if err != nil {
		return nil, err
	}
	tables := make([]*table, 0, len(names))
	for _, name := range names {
		t := &table{Name: name}
		if err := postgresColumns(ctx, conn, t); err != nil {
			return nil, err
		}
		if err := postgresConstraints(ctx, conn, t); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func postgresTableNames(ctx context.Context, conn *pgx.Conn) ([]string, error) {
	rows, err := conn.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
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

func postgresColumns(ctx context.Context, conn *pgx.Conn, t *table) error {
	rows, err := conn.Query(ctx, `
		SELECT column_name, data_type, udt_name, is_nullable, COALESCE(column_default, '')
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, t.Name)
	if err != nil {
		return fmt.Errorf("list columns of %s: %w", t.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var col column
		var dataType, udtName, nullable string
		if err := rows.Scan(&col.Name, &dataType, &udtName, &nullable, &col.Default); err != nil {
			return fmt.Errorf("scan column of %s: %w", t.Name, err)
		}
		col.Nullable = nullable == "YES"
		if dataType == "ARRAY" {
			// Array element types arrive as udt_name with a leading
			// underscore, e.g. _int4.
			col.IsArray = true
			col.NativeType = strings.TrimPrefix(udtName, "_")
		} else {
			col.NativeType = dataType
		}
		t.Columns = append(t.Columns, col)
	}
	return rows.Err()
}

// postgresConstraints loads primary key, unique, and foreign key metadata
// for one table in a single pass over key_column_usage.
func postgresConstraints(ctx context.Context, conn *pgx.Conn, t *table) error {
	rows, err := conn.Query(ctx, `
		SELECT tc.constraint_name, tc.constraint_type, kcu.column_name,
		       COALESCE(ccu.table_name, ''), COALESCE(ccu.column_name, '')
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = tc.constraint_name
		 AND kcu.table_schema = tc.table_schema
		LEFT JOIN information_schema.constraint_column_usage ccu
		  ON ccu.constraint_name = tc.constraint_name
		 AND ccu.table_schema = tc.table_schema
		 AND tc.constraint_type = 'FOREIGN KEY'
		WHERE tc.table_schema = 'public' AND tc.table_name = $1
		ORDER BY tc.constraint_name, kcu.ordinal_position`, t.Name)
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
