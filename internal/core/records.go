package core

import "github.com/jackc/pgx/v5/pgtype"

// Record is a typed silver row. Values returns one value per schema field, in
// schema order, so records can be snapshotted or bulk-copied without reflection.
type Record interface {
	Table() TableName
	Key() pgtype.Text
	Values() []any
}

// Customer is a normalized customers row.
type Customer struct {
	CustomerID        pgtype.Text `json:"customer_id"`
	FirstName         pgtype.Text `json:"first_name"`
	LastName          pgtype.Text `json:"last_name"`
	Email             pgtype.Text `json:"email"`
	City              pgtype.Text `json:"city"`
	SignupDate        pgtype.Date `json:"signup_date"`
	Age               pgtype.Int8 `json:"age"`
	SatisfactionScore pgtype.Int8 `json:"customer_satisfaction_score"`
	LoyaltyPoints     pgtype.Int8 `json:"loyalty_points"`

	Pos int `json:"-"` // Zero-based position in the bronze table
}

func (c Customer) Table() TableName { return TableCustomers }
func (c Customer) Key() pgtype.Text { return c.CustomerID }

func (c Customer) Values() []any {
	return []any{
		c.CustomerID, c.FirstName, c.LastName, c.Email, c.City,
		c.SignupDate, c.Age, c.SatisfactionScore, c.LoyaltyPoints,
	}
}

// Product is a normalized products row.
type Product struct {
	ProductID       pgtype.Text    `json:"product_id"`
	Name            pgtype.Text    `json:"name"`
	Category        pgtype.Text    `json:"category"`
	Price           pgtype.Numeric `json:"price"`
	Stock           pgtype.Int8    `json:"stock"`
	Rating          pgtype.Numeric `json:"rating"`
	DiscountPercent pgtype.Numeric `json:"discount_percent"`
	ReturnRate      pgtype.Numeric `json:"return_rate"`
	Brand           pgtype.Text    `json:"brand"`

	Pos int `json:"-"` // Zero-based position in the bronze table
}

func (p Product) Table() TableName { return TableProducts }
func (p Product) Key() pgtype.Text { return p.ProductID }

func (p Product) Values() []any {
	return []any{
		p.ProductID, p.Name, p.Category, p.Price, p.Stock,
		p.Rating, p.DiscountPercent, p.ReturnRate, p.Brand,
	}
}

// Order is a normalized orders row.
type Order struct {
	OrderID          pgtype.Text    `json:"order_id"`
	CustomerID       pgtype.Text    `json:"customer_id"`
	ProductID        pgtype.Text    `json:"product_id"`
	OrderDate        pgtype.Date    `json:"order_date"`
	TotalAmount      pgtype.Numeric `json:"total_amount"`
	PaymentType      pgtype.Text    `json:"payment_type"`
	OrderStatus      pgtype.Text    `json:"order_status"`
	RepeatCustomer   pgtype.Bool    `json:"repeat_customer"`
	CancellationFlag pgtype.Bool    `json:"cancellation_flag"`

	Pos int `json:"-"` // Zero-based position in the bronze table
}

func (o Order) Table() TableName { return TableOrders }
func (o Order) Key() pgtype.Text { return o.OrderID }

func (o Order) Values() []any {
	return []any{
		o.OrderID, o.CustomerID, o.ProductID, o.OrderDate, o.TotalAmount,
		o.PaymentType, o.OrderStatus, o.RepeatCustomer, o.CancellationFlag,
	}
}

// Payment is a normalized payments row.
type Payment struct {
	PaymentID     pgtype.Text `json:"payment_id"`
	OrderID       pgtype.Text `json:"order_id"`
	PaymentDate   pgtype.Date `json:"payment_date"`
	PaymentType   pgtype.Text `json:"payment_type"`
	PaymentStatus pgtype.Text `json:"payment_status"`
	RefundFlag    pgtype.Bool `json:"refund_flag"`

	Pos int `json:"-"` // Zero-based position in the bronze table
}

func (p Payment) Table() TableName { return TablePayments }
func (p Payment) Key() pgtype.Text { return p.PaymentID }

func (p Payment) Values() []any {
	return []any{p.PaymentID, p.OrderID, p.PaymentDate, p.PaymentType, p.PaymentStatus, p.RefundFlag}
}

// Delivery is a normalized delivery row.
type Delivery struct {
	DeliveryID       pgtype.Text `json:"delivery_id"`
	OrderID          pgtype.Text `json:"order_id"`
	DeliverDate      pgtype.Date `json:"deliver_date"`
	DeliveryPartner  pgtype.Text `json:"delivery_partner"`
	DeliveryStatus   pgtype.Text `json:"delivery_status"`
	CustomerFeedback pgtype.Text `json:"customer_feedback"`

	Pos int `json:"-"` // Zero-based position in the bronze table
}

func (d Delivery) Table() TableName { return TableDelivery }
func (d Delivery) Key() pgtype.Text { return d.DeliveryID }

func (d Delivery) Values() []any {
	return []any{d.DeliveryID, d.OrderID, d.DeliverDate, d.DeliveryPartner, d.DeliveryStatus, d.CustomerFeedback}
}

func decodeCustomer(r rowReader) Customer {
	return Customer{
		CustomerID:        r.text("customer_id"),
		FirstName:         r.text("first_name"),
		LastName:          r.text("last_name"),
		Email:             r.text("email"),
		City:              r.text("city"),
		SignupDate:        r.date("signup_date"),
		Age:               r.integer("age"),
		SatisfactionScore: r.integer("customer_satisfaction_score"),
		LoyaltyPoints:     r.integer("loyalty_points"),
		Pos:               r.pos,
	}
}

func decodeProduct(r rowReader) Product {
	return Product{
		ProductID:       r.text("product_id"),
		Name:            r.text("name"),
		Category:        r.text("category"),
		Price:           r.numeric("price"),
		Stock:           r.integer("stock"),
		Rating:          r.numeric("rating"),
		DiscountPercent: r.numeric("discount_percent"),
		ReturnRate:      r.numeric("return_rate"),
		Brand:           r.text("brand"),
		Pos:             r.pos,
	}
}

func decodeOrder(r rowReader) Order {
	return Order{
		OrderID:          r.text("order_id"),
		CustomerID:       r.text("customer_id"),
		ProductID:        r.text("product_id"),
		OrderDate:        r.date("order_date"),
		TotalAmount:      r.numeric("total_amount"),
		PaymentType:      r.text("payment_type"),
		OrderStatus:      r.text("order_status"),
		RepeatCustomer:   r.boolean("repeat_customer"),
		CancellationFlag: r.boolean("cancellation_flag"),
		Pos:              r.pos,
	}
}

func decodePayment(r rowReader) Payment {
	return Payment{
		PaymentID:     r.text("payment_id"),
		OrderID:       r.text("order_id"),
		PaymentDate:   r.date("payment_date"),
		PaymentType:   r.text("payment_type"),
		PaymentStatus: r.text("payment_status"),
		RefundFlag:    r.boolean("refund_flag"),
		Pos:           r.pos,
	}
}

func decodeDelivery(r rowReader) Delivery {
	return Delivery{
		DeliveryID:       r.text("delivery_id"),
		OrderID:          r.text("order_id"),
		DeliverDate:      r.date("deliver_date"),
		DeliveryPartner:  r.text("delivery_partner"),
		DeliveryStatus:   r.text("delivery_status"),
		CustomerFeedback: r.text("customer_feedback"),
		Pos:              r.pos,
	}
}

// DecodeCustomers normalizes a bronze customers table.
func DecodeCustomers(t RawTable) []Customer {
	return decodeTable(schemas[TableCustomers], t, decodeCustomer)
}

// DecodeProducts normalizes a bronze products table.
func DecodeProducts(t RawTable) []Product {
	return decodeTable(schemas[TableProducts], t, decodeProduct)
}

// DecodeOrders normalizes a bronze orders table.
func DecodeOrders(t RawTable) []Order {
	return decodeTable(schemas[TableOrders], t, decodeOrder)
}

// DecodePayments normalizes a bronze payments table.
func DecodePayments(t RawTable) []Payment {
	return decodeTable(schemas[TablePayments], t, decodePayment)
}

// DecodeDelivery normalizes a bronze delivery table.
func DecodeDelivery(t RawTable) []Delivery {
	return decodeTable(schemas[TableDelivery], t, decodeDelivery)
}
