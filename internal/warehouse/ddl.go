package warehouse

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/medallion/internal/core"
	"github.com/jackc/pgx/v5"
)

// column is a target column and its Postgres type.
type column struct {
	name   string
	pgType string
}

// pgType maps a field type to the Postgres type used for silver and gold.
func pgType(t core.FieldType) string {
	switch t {
	case core.FieldDate:
		return "DATE"
	case core.FieldNumeric:
		return "NUMERIC"
	case core.FieldInteger:
		return "BIGINT"
	case core.FieldBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func silverColumns(schema core.TableSchema) []column {
	cols := make([]column, len(schema.Fields))
	for i, f := range schema.Fields {
		cols[i] = column{name: f.Name, pgType: pgType(f.Type)}
	}
	return cols
}

func columnNames(cols []column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}

func createSchemaSQL(schema string) string {
	return "CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{schema}.Sanitize()
}

func createTableSQL(schema, table string, cols []column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = pgx.Identifier{c.name}.Sanitize() + " " + c.pgType
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		pgx.Identifier{schema, table}.Sanitize(), strings.Join(defs, ",\n\t"))
}

func truncateSQL(schema, table string) string {
	return "TRUNCATE TABLE " + pgx.Identifier{schema, table}.Sanitize()
}

func selectAllSQL(schema, table string) string {
	return "SELECT * FROM " + pgx.Identifier{schema, table}.Sanitize()
}

// ledgerColumns is the layout of the rejected_rows audit table.
var ledgerColumns = []column{
	{name: "run_id", pgType: "UUID NOT NULL"},
	{name: "stage", pgType: "TEXT NOT NULL"},
	{name: "table_name", pgType: "TEXT NOT NULL"},
	{name: "rule_name", pgType: "TEXT NOT NULL"},
	{name: "reason", pgType: "TEXT NOT NULL"},
	{name: "row_data", pgType: "JSONB NOT NULL"},
	{name: "created_at", pgType: "TIMESTAMPTZ NOT NULL"},
}

// LedgerTable is the audit table receiving rejections.
const LedgerTable = "rejected_rows"
