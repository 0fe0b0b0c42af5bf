// Package gold builds the customer and product aggregates from silver tables
// and exports them as CSV.
package gold

import (
	"sort"

	"github.com/JonMunkholm/medallion/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Gold table names.
const (
	TableCustomerAgg = "customer_agg"
	TableProductAgg  = "product_agg"
)

// AvgScale is the number of decimal places kept for averages.
const AvgScale = 2

// Column is one gold column.
type Column struct {
	Name string
	Type core.FieldType
}

// Table is a gold table ready for a sink or an exporter.
type Table struct {
	Name    string
	Key     string
	Columns []Column
	Rows    [][]any
}

// CustomerAgg is one silver customer with its order, payment and delivery
// counts.
type CustomerAgg struct {
	core.Customer
	TotalOrders     int64
	AvgOrderAmount  decimal.Decimal
	TotalPayments   int64
	TotalDeliveries int64
}

// Values returns the customer columns followed by the aggregates.
func (c CustomerAgg) Values() []any {
	return append(c.Customer.Values(),
		pgtype.Int8{Int64: c.TotalOrders, Valid: true},
		core.NumericFromDecimal(c.AvgOrderAmount),
		pgtype.Int8{Int64: c.TotalPayments, Valid: true},
		pgtype.Int8{Int64: c.TotalDeliveries, Valid: true},
	)
}

// ProductAgg is one silver product with its sales figures.
type ProductAgg struct {
	core.Product
	TotalSold    int64
	TotalRevenue decimal.Decimal
}

// Values returns the product columns followed by the aggregates.
func (p ProductAgg) Values() []any {
	return append(p.Product.Values(),
		pgtype.Int8{Int64: p.TotalSold, Valid: true},
		core.NumericFromDecimal(p.TotalRevenue),
	)
}

// Tables is the output of one aggregation.
type Tables struct {
	Customers []CustomerAgg
	Products  []ProductAgg
}

// Aggregate computes both gold tables. Every silver customer and product is
// present; a key without activity gets zero counts and amounts. Payments and
// deliveries reach customers through their order. Rows are sorted by key.
func Aggregate(silver core.SilverTables) Tables {
	type orderTotals struct {
		count int64
		sum   decimal.Decimal
	}

	customerOf := make(map[string]string, len(silver.Orders))
	byCustomer := make(map[string]*orderTotals)
	byProduct := make(map[string]*orderTotals)
	add := func(m map[string]*orderTotals, key pgtype.Text, amount pgtype.Numeric) {
		if !key.Valid {
			return
		}
		t, ok := m[key.String]
		if !ok {
			t = &orderTotals{}
			m[key.String] = t
		}
		t.count++
		if d, ok := core.DecimalFromNumeric(amount); ok {
			t.sum = t.sum.Add(d)
		}
	}
	for _, o := range silver.Orders {
		if o.OrderID.Valid && o.CustomerID.Valid {
			customerOf[o.OrderID.String] = o.CustomerID.String
		}
		add(byCustomer, o.CustomerID, o.TotalAmount)
		add(byProduct, o.ProductID, o.TotalAmount)
	}

	payments := countByCustomer(customerOf, len(silver.Payments), func(i int) pgtype.Text { return silver.Payments[i].OrderID })
	deliveries := countByCustomer(customerOf, len(silver.Delivery), func(i int) pgtype.Text { return silver.Delivery[i].OrderID })

	out := Tables{
		Customers: make([]CustomerAgg, 0, len(silver.Customers)),
		Products:  make([]ProductAgg, 0, len(silver.Products)),
	}
	for _, c := range silver.Customers {
		agg := CustomerAgg{Customer: c, AvgOrderAmount: decimal.Zero}
		id := c.CustomerID.String
		if t, ok := byCustomer[id]; ok && t.count > 0 {
			agg.TotalOrders = t.count
			agg.AvgOrderAmount = t.sum.Div(decimal.NewFromInt(t.count)).Round(AvgScale)
		}
		agg.TotalPayments = payments[id]
		agg.TotalDeliveries = deliveries[id]
		out.Customers = append(out.Customers, agg)
	}
	for _, p := range silver.Products {
		agg := ProductAgg{Product: p, TotalRevenue: decimal.Zero}
		if t, ok := byProduct[p.ProductID.String]; ok {
			agg.TotalSold = t.count
			agg.TotalRevenue = t.sum
		}
		out.Products = append(out.Products, agg)
	}

	sort.SliceStable(out.Customers, func(i, j int) bool {
		return out.Customers[i].CustomerID.String < out.Customers[j].CustomerID.String
	})
	sort.SliceStable(out.Products, func(i, j int) bool {
		return out.Products[i].ProductID.String < out.Products[j].ProductID.String
	})
	return out
}

func countByCustomer(customerOf map[string]string, n int, orderID func(int) pgtype.Text) map[string]int64 {
	counts := make(map[string]int64)
	for i := 0; i < n; i++ {
		oid := orderID(i)
		if !oid.Valid {
			continue
		}
		if cid, ok := customerOf[oid.String]; ok {
			counts[cid]++
		}
	}
	return counts
}

// CustomerAggColumns returns the customer_agg column layout.
func CustomerAggColumns() []Column {
	return append(silverColumns(core.TableCustomers),
		Column{Name: "total_orders", Type: core.FieldInteger},
		Column{Name: "avg_order_amount", Type: core.FieldNumeric},
		Column{Name: "total_payments", Type: core.FieldInteger},
		Column{Name: "total_deliveries", Type: core.FieldInteger},
	)
}

// ProductAggColumns returns the product_agg column layout.
func ProductAggColumns() []Column {
	return append(silverColumns(core.TableProducts),
		Column{Name: "total_sold", Type: core.FieldInteger},
		Column{Name: "total_revenue", Type: core.FieldNumeric},
	)
}

func silverColumns(table core.TableName) []Column {
	schema, _ := core.SchemaFor(table)
	cols := make([]Column, len(schema.Fields))
	for i, f := range schema.Fields {
		cols[i] = Column{Name: f.Name, Type: f.Type}
	}
	return cols
}

// List returns both tables in a sink-ready form.
func (t Tables) List() []Table {
	customers := Table{Name: TableCustomerAgg, Key: "customer_id", Columns: CustomerAggColumns()}
	for _, c := range t.Customers {
		customers.Rows = append(customers.Rows, c.Values())
	}
	products := Table{Name: TableProductAgg, Key: "product_id", Columns: ProductAggColumns()}
	for _, p := range t.Products {
		products.Rows = append(products.Rows, p.Values())
	}
	return []Table{customers, products}
}
