package core

import (
	"sort"
	"strings"
)

// FieldType is the declared semantic type of a bronze column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldDate
	FieldNumeric
	FieldInteger
	FieldBool
)

// String returns a human-readable name for a field type.
func (t FieldType) String() string {
	switch t {
	case FieldText:
		return "text"
	case FieldDate:
		return "date"
	case FieldNumeric:
		return "numeric"
	case FieldInteger:
		return "integer"
	case FieldBool:
		return "bool"
	default:
		return "value"
	}
}

// TableName identifies one of the five pipeline entities.
type TableName string

const (
	TableCustomers TableName = "customers"
	TableProducts  TableName = "products"
	TableOrders    TableName = "orders"
	TablePayments  TableName = "payments"
	TableDelivery  TableName = "delivery"
)

// DefaultStage is the ledger stage recorded by the bronze to silver pass.
const DefaultStage = "silver"

// FieldSpec describes a single bronze column.
type FieldSpec struct {
	Name     string    // Silver column name
	Type     FieldType // Declared semantic type
	Required bool      // Column must exist in the bronze table
	Aliases  []string  // Alternate bronze spellings accepted for this column
}

// RawRow is one bronze row: column name to raw scalar.
type RawRow map[string]any

// RawTable is a bronze table as delivered by a provider. Columns is the header
// the provider observed; it is what structural checks run against, so an empty
// table still reports its missing columns.
type RawTable struct {
	Columns []string
	Rows    []RawRow
}

// NewRawTable builds a RawTable whose header is the sorted union of the row keys.
// Useful for tests and for providers that have no separate header.
func NewRawTable(rows ...RawRow) RawTable {
	seen := make(map[string]bool)
	for _, r := range rows {
		for k := range r {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return RawTable{Columns: cols, Rows: rows}
}

// BronzeSnapshot is the full input of one run, keyed by table name.
type BronzeSnapshot map[TableName]RawTable

// headerIndex maps a normalized (trimmed, lowercased) column name to the
// provider's original spelling.
type headerIndex map[string]string

func makeHeaderIndex(columns []string) headerIndex {
	idx := make(headerIndex, len(columns))
	for _, c := range columns {
		key := normalizeHeader(c)
		if _, exists := idx[key]; !exists {
			idx[key] = c
		}
	}
	return idx
}

// resolve returns the provider column that serves spec, trying aliases in order.
func (h headerIndex) resolve(spec FieldSpec) (string, bool) {
	if col, ok := h[normalizeHeader(spec.Name)]; ok {
		return col, true
	}
	for _, alias := range spec.Aliases {
		if col, ok := h[normalizeHeader(alias)]; ok {
			return col, true
		}
	}
	return "", false
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
