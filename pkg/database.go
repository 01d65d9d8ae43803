package pkg

import (
	"context"
	"database/sql"
	"fmt"

	"sqlchat/internal/api/models"
)

// ColumnRow is one row of the information_schema introspection query: one column of
// one table together with its constraint and foreign-key metadata.
type ColumnRow struct {
	TableName         string
	TableDescription  sql.NullString
	ColumnName        string
	DataType          string
	IsNullable        string
	ColumnDescription sql.NullString
	ConstraintType    sql.NullString
	ForeignTableName  sql.NullString
	ForeignColumnName sql.NullString
}

const introspectQuery = `
        SELECT
            isc.table_name,
            obj_description((isc.table_schema || '.' || isc.table_name)::regclass, 'pg_class') as table_description,
            isc.column_name,
            isc.data_type,
            isc.is_nullable,
            pg_catalog.col_description((isc.table_schema || '.' || isc.table_name)::regclass, isc.ordinal_position) as column_description,
            tc.constraint_type,
            ccu.table_name AS foreign_table_name,
            ccu.column_name AS foreign_column_name
        FROM information_schema.columns isc
        LEFT JOIN information_schema.key_column_usage kcu
            ON isc.table_schema = kcu.table_schema
            AND isc.table_name = kcu.table_name
            AND isc.column_name = kcu.column_name
        LEFT JOIN information_schema.table_constraints tc
            ON kcu.constraint_name = tc.constraint_name
            AND kcu.table_schema = tc.table_schema
        LEFT JOIN information_schema.constraint_column_usage ccu
            ON tc.constraint_name = ccu.constraint_name
            AND tc.table_schema = ccu.table_schema
            AND tc.constraint_type = 'FOREIGN KEY'
        WHERE isc.table_schema = 'public'
        ORDER BY isc.table_name, isc.ordinal_position
    `

// FindPostgresDatabaseSchema reads the enriched schema of the connected PostgreSQL
// database from information_schema, one row per column/constraint pair.
func FindPostgresDatabaseSchema(ctx context.Context, db *sql.DB) ([]ColumnRow, error) {
	rows, err := db.QueryContext(ctx, introspectQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute introspection query: %w", err)
	}
	defer rows.Close()

	var out []ColumnRow
	for rows.Next() {
		var cr ColumnRow
		err := rows.Scan(
			&cr.TableName,
			&cr.TableDescription,
			&cr.ColumnName,
			&cr.DataType,
			&cr.IsNullable,
			&cr.ColumnDescription,
			&cr.ConstraintType,
			&cr.ForeignTableName,
			&cr.ForeignColumnName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return out, nil
}

// GroupColumnRows folds flat introspection rows into one SchemaDocument per table,
// preserving column order. A column appearing on several constraint rows (e.g. both
// PK and FK) is merged into a single ColumnInfo.
func GroupColumnRows(rows []ColumnRow) []models.SchemaDocument {
	var docs []models.SchemaDocument
	index := make(map[string]int)    // table -> position in docs
	colIndex := make(map[string]int) // table.column -> position in doc.Columns

	for _, row := range rows {
		di, ok := index[row.TableName]
		if !ok {
			docs = append(docs, models.SchemaDocument{
				TableName:   row.TableName,
				Description: row.TableDescription.String,
			})
			di = len(docs) - 1
			index[row.TableName] = di
		}

		key := row.TableName + "." + row.ColumnName
		ci, ok := colIndex[key]
		if !ok {
			docs[di].Columns = append(docs[di].Columns, models.ColumnInfo{
				Name:     row.ColumnName,
				DataType: row.DataType,
				Nullable: row.IsNullable == "YES",
			})
			ci = len(docs[di].Columns) - 1
			colIndex[key] = ci
		}

		col := &docs[di].Columns[ci]
		switch row.ConstraintType.String {
		case "PRIMARY KEY":
			col.IsPrimary = true
		case "FOREIGN KEY":
			col.IsForeign = true
			col.RefTable = row.ForeignTableName.String
			col.RefColumn = row.ForeignColumnName.String
		}
	}

	return docs
}
