package core

import "github.com/jackc/pgx/v5/pgtype"

// TableSchema declares the columns of one entity and the tables it validates
// against. Field order is the silver column order.
type TableSchema struct {
	Table     TableName
	Key       string
	Fields    []FieldSpec
	DependsOn []TableName
}

// Columns returns the silver column names in order.
func (s TableSchema) Columns() []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Name
	}
	return cols
}

// RequiredColumns returns the columns a bronze table must provide.
func (s TableSchema) RequiredColumns() []string {
	var cols []string
	for _, f := range s.Fields {
		if f.Required {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

var schemas = map[TableName]TableSchema{
	TableCustomers: {
		Table: TableCustomers,
		Key:   "customer_id",
		Fields: []FieldSpec{
			{Name: "customer_id", Type: FieldText, Required: true},
			{Name: "first_name", Type: FieldText},
			{Name: "last_name", Type: FieldText},
			{Name: "email", Type: FieldText},
			{Name: "city", Type: FieldText},
			{Name: "signup_date", Type: FieldDate, Required: true},
			{Name: "age", Type: FieldInteger, Required: true},
			{Name: "customer_satisfaction_score", Type: FieldInteger},
			{Name: "loyalty_points", Type: FieldInteger},
		},
	},
	TableProducts: {
		Table: TableProducts,
		Key:   "product_id",
		Fields: []FieldSpec{
			{Name: "product_id", Type: FieldText, Required: true},
			{Name: "name", Type: FieldText},
			{Name: "category", Type: FieldText},
			{Name: "price", Type: FieldNumeric, Required: true},
			{Name: "stock", Type: FieldInteger, Required: true},
			{Name: "rating", Type: FieldNumeric},
			{Name: "discount_percent", Type: FieldNumeric},
			{Name: "return_rate", Type: FieldNumeric},
			{Name: "brand", Type: FieldText},
		},
	},
	TableOrders: {
		Table: TableOrders,
		Key:   "order_id",
		Fields: []FieldSpec{
			{Name: "order_id", Type: FieldText, Required: true},
			{Name: "customer_id", Type: FieldText, Required: true},
			{Name: "product_id", Type: FieldText},
			{Name: "order_date", Type: FieldDate, Required: true},
			{Name: "total_amount", Type: FieldNumeric, Required: true},
			{Name: "payment_type", Type: FieldText},
			{Name: "order_status", Type: FieldText},
			{Name: "repeat_customer", Type: FieldBool},
			{Name: "cancellation_flag", Type: FieldBool},
		},
		DependsOn: []TableName{TableCustomers},
	},
	TablePayments: {
		Table: TablePayments,
		Key:   "payment_id",
		Fields: []FieldSpec{
			{Name: "payment_id", Type: FieldText, Required: true},
			{Name: "order_id", Type: FieldText, Required: true},
			// Bronze spells this column "paymnt_date".
			{Name: "payment_date", Type: FieldDate, Required: true, Aliases: []string{"paymnt_date"}},
			{Name: "payment_type", Type: FieldText},
			{Name: "payment_status", Type: FieldText, Required: true},
			{Name: "refund_flag", Type: FieldBool},
		},
		DependsOn: []TableName{TableOrders},
	},
	TableDelivery: {
		Table: TableDelivery,
		Key:   "delivery_id",
		Fields: []FieldSpec{
			{Name: "delivery_id", Type: FieldText, Required: true},
			{Name: "order_id", Type: FieldText, Required: true},
			{Name: "deliver_date", Type: FieldDate, Required: true},
			{Name: "delivery_partner", Type: FieldText},
			{Name: "delivery_status", Type: FieldText},
			{Name: "customer_feedback", Type: FieldText},
		},
		DependsOn: []TableName{TableOrders, TablePayments},
	},
}

// SchemaFor returns the schema of a table.
func SchemaFor(table TableName) (TableSchema, bool) {
	s, ok := schemas[table]
	return s, ok
}

// AllTables returns every known table in processing order.
func AllTables() []TableName {
	out := make([]TableName, len(DefaultOrder))
	copy(out, DefaultOrder)
	return out
}

// CheckColumns reports every required column the bronze table does not provide.
func CheckColumns(schema TableSchema, table RawTable) []StructuralFault {
	idx := makeHeaderIndex(table.Columns)
	var faults []StructuralFault
	for _, spec := range schema.Fields {
		if !spec.Required {
			continue
		}
		if _, ok := idx.resolve(spec); !ok {
			faults = append(faults, StructuralFault{Table: schema.Table, Column: spec.Name})
		}
	}
	return faults
}

// rowReader reads typed values out of one raw row through a header index.
type rowReader struct {
	row    RawRow
	pos    int
	header headerIndex
	schema TableSchema
}

func (r rowReader) raw(name string) any {
	for _, spec := range r.schema.Fields {
		if spec.Name != name {
			continue
		}
		col, ok := r.header.resolve(spec)
		if !ok {
			return nil
		}
		return r.row[col]
	}
	return nil
}

func (r rowReader) text(name string) pgtype.Text       { return NormalizeText(r.raw(name)) }
func (r rowReader) date(name string) pgtype.Date       { return NormalizeDate(r.raw(name)) }
func (r rowReader) numeric(name string) pgtype.Numeric { return NormalizeNumeric(r.raw(name)) }
func (r rowReader) integer(name string) pgtype.Int8    { return NormalizeInteger(r.raw(name)) }
func (r rowReader) boolean(name string) pgtype.Bool    { return NormalizeBool(r.raw(name)) }

// decodeTable normalizes every row of a bronze table into typed records.
func decodeTable[T any](schema TableSchema, table RawTable, decode func(rowReader) T) []T {
	header := makeHeaderIndex(table.Columns)
	out := make([]T, 0, len(table.Rows))
	for i, row := range table.Rows {
		out = append(out, decode(rowReader{row: row, pos: i, header: header, schema: schema}))
	}
	return out
}
