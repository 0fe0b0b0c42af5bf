package core

import (
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// Rule names. These are recorded verbatim in the rejection ledger.
const (
	RuleMissingPK          = "MISSING_PK"
	RuleDuplicatePK        = "DUPLICATE_PK"
	RuleMissingSignupDate  = "MISSING_SIGNUP_DATE"
	RuleMissingAge         = "MISSING_AGE"
	RuleAgeRange           = "AGE_RANGE"
	RuleMissingPrice       = "MISSING_PRICE"
	RulePriceRange         = "PRICE_RANGE"
	RuleMissingStock       = "MISSING_STOCK"
	RuleStockNegative      = "STOCK_NEG"
	RuleMissingTotalAmount = "MISSING_TOTAL_AMT"
	RuleTotalAmount        = "TOTAL_AMT"
	RuleMissingOrderDate   = "MISSING_DATE"
	RuleCustomerFK         = "CUSTOMER_FK"
	RuleDateLogic          = "DATE_LOGIC"
	RuleMissingPaymentDate = "MISSING_PAYMENT_DATE"
	RuleMissingStatus      = "MISSING_STATUS"
	RuleOrderFK            = "ORDER_FK"
	RulePaymentLogic       = "PAYMENT_LOGIC"
	RuleMissingDeliverDate = "MISSING_DELIVER_DATE"
	RuleDeliveryLogic      = "DELIVERY_LOGIC"
)

// Age bounds, inclusive.
const (
	MinAge = 0
	MaxAge = 100
)

// keyRules returns the MISSING_PK and DUPLICATE_PK rules shared by every table.
func keyRules[T Record](table TableName, keyCol string) []Rule[T] {
	return []Rule[T]{
		RowRule(table, RuleMissingPK, keyCol+" is null", func(r T) bool {
			return r.Key().Valid
		}),
		TableRule(table, RuleDuplicatePK, keyCol+" is not unique", func(rows []T) func(T) bool {
			counts := make(map[string]int, len(rows))
			for _, r := range rows {
				if k := r.Key(); k.Valid {
					counts[k.String]++
				}
			}
			return func(r T) bool {
				k := r.Key()
				return !k.Valid || counts[k.String] <= 1
			}
		}),
	}
}

// CustomerRules is the customers chain.
func CustomerRules() []Rule[Customer] {
	t := TableCustomers
	return append(keyRules[Customer](t, "customer_id"),
		RowRule(t, RuleMissingSignupDate, "signup_date is null or unparseable", func(c Customer) bool {
			return c.SignupDate.Valid
		}),
		RowRule(t, RuleMissingAge, "age is null or unparseable", func(c Customer) bool {
			return c.Age.Valid
		}),
		RowRule(t, RuleAgeRange, "age outside [0, 100]", func(c Customer) bool {
			return !c.Age.Valid || (c.Age.Int64 >= MinAge && c.Age.Int64 <= MaxAge)
		}),
	)
}

// ProductRules is the products chain.
func ProductRules() []Rule[Product] {
	t := TableProducts
	return append(keyRules[Product](t, "product_id"),
		RowRule(t, RuleMissingPrice, "price is null or unparseable", func(p Product) bool {
			return p.Price.Valid
		}),
		RowRule(t, RulePriceRange, "price <= 0", func(p Product) bool {
			return !p.Price.Valid || numericSign(p.Price) > 0
		}),
		RowRule(t, RuleMissingStock, "stock is null or unparseable", func(p Product) bool {
			return p.Stock.Valid
		}),
		RowRule(t, RuleStockNegative, "stock < 0", func(p Product) bool {
			return !p.Stock.Valid || p.Stock.Int64 >= 0
		}),
	)
}

// OrderRules is the orders chain, validated against accepted customers.
func OrderRules(customers Index[Customer]) []Rule[Order] {
	t := TableOrders
	customerOf := func(o Order) pgtype.Text { return o.CustomerID }
	return append(keyRules[Order](t, "order_id"),
		RowRule(t, RuleMissingTotalAmount, "total_amount is null or unparseable", func(o Order) bool {
			return o.TotalAmount.Valid
		}),
		RowRule(t, RuleTotalAmount, "total_amount <= 0", func(o Order) bool {
			return !o.TotalAmount.Valid || numericSign(o.TotalAmount) > 0
		}),
		RowRule(t, RuleMissingOrderDate, "order_date is null", func(o Order) bool {
			return o.OrderDate.Valid
		}),
		ForeignKeyRule(t, RuleCustomerFK, "customer_id has no accepted customer", customerOf, customers),
		JoinRule(t, RuleDateLogic, "order_date < signup_date", customerOf, customers, func(o Order, c Customer) bool {
			return !before(o.OrderDate, c.SignupDate)
		}),
	)
}

// PaymentRules is the payments chain, validated against accepted orders.
func PaymentRules(orders Index[Order]) []Rule[Payment] {
	t := TablePayments
	orderOf := func(p Payment) pgtype.Text { return p.OrderID }
	return append(keyRules[Payment](t, "payment_id"),
		RowRule(t, RuleMissingPaymentDate, "payment_date is null or unparseable", func(p Payment) bool {
			return p.PaymentDate.Valid
		}),
		RowRule(t, RuleMissingStatus, "payment_status is null", func(p Payment) bool {
			return p.PaymentStatus.Valid
		}),
		ForeignKeyRule(t, RuleOrderFK, "order_id has no accepted order", orderOf, orders),
		JoinRule(t, RulePaymentLogic, "payment before order or cancelled+success", orderOf, orders, func(p Payment, o Order) bool {
			if before(p.PaymentDate, o.OrderDate) {
				return false
			}
			return !(isTrue(o.CancellationFlag) && isSuccess(p.PaymentStatus))
		}),
	)
}

// DeliveryRules is the delivery chain, validated against accepted orders. When
// paid is non-nil the strict variant also requires deliver_date to be on or
// after the latest accepted payment of the order.
func DeliveryRules(orders Index[Order], paid PaymentDates) []Rule[Delivery] {
	t := TableDelivery
	orderOf := func(d Delivery) pgtype.Text { return d.OrderID }
	reason := "deliver_date < order_date"
	if paid != nil {
		reason = "deliver_date < order_date or payment_date"
	}
	return append(keyRules[Delivery](t, "delivery_id"),
		RowRule(t, RuleMissingDeliverDate, "deliver_date is null or unparseable", func(d Delivery) bool {
			return d.DeliverDate.Valid
		}),
		ForeignKeyRule(t, RuleOrderFK, "order_id has no accepted order", orderOf, orders),
		JoinRule(t, RuleDeliveryLogic, reason, orderOf, orders, func(d Delivery, o Order) bool {
			if before(d.DeliverDate, o.OrderDate) {
				return false
			}
			if paid == nil || !d.DeliverDate.Valid {
				return true
			}
			last, ok := paid[o.OrderID.String]
			return !ok || !d.DeliverDate.Time.Before(last)
		}),
	)
}

func numericSign(n pgtype.Numeric) int {
	d, ok := DecimalFromNumeric(n)
	if !ok {
		return 0
	}
	return d.Sign()
}

func isTrue(b pgtype.Bool) bool { return b.Valid && b.Bool }

func isSuccess(status pgtype.Text) bool {
	return status.Valid && strings.EqualFold(status.String, "success")
}
