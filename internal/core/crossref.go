package core

// crossref.go validates child rows against parent tables that earlier stages
// have already reduced to their accepted rows.
//
// The pattern is join-then-filter: each child is looked up in an Index of its
// parent table by foreign key, and the rule fails when there is no parent or
// when the predicate over the joined pair fails. Indexes are only ever built
// from accepted rows, which is what makes a rejected order reject its payments.

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Index is a lookup of accepted parent rows by key.
type Index[T any] struct {
	byKey map[string]T
}

// NewIndex indexes rows by key. Rows with a missing key are skipped; on
// duplicate keys the first row wins.
func NewIndex[T any](rows []T, key func(T) pgtype.Text) Index[T] {
	ix := Index[T]{byKey: make(map[string]T, len(rows))}
	for _, row := range rows {
		k := key(row)
		if !k.Valid {
			continue
		}
		if _, exists := ix.byKey[k.String]; !exists {
			ix.byKey[k.String] = row
		}
	}
	return ix
}

// Lookup returns the parent with key k.
func (ix Index[T]) Lookup(k pgtype.Text) (T, bool) {
	var zero T
	if !k.Valid || ix.byKey == nil {
		return zero, false
	}
	row, ok := ix.byKey[k.String]
	return row, ok
}

// Len returns the number of indexed parents.
func (ix Index[T]) Len() int { return len(ix.byKey) }

// IndexCustomers indexes accepted customers by customer_id.
func IndexCustomers(rows []Customer) Index[Customer] {
	return NewIndex(rows, func(c Customer) pgtype.Text { return c.CustomerID })
}

// IndexOrders indexes accepted orders by order_id.
func IndexOrders(rows []Order) Index[Order] {
	return NewIndex(rows, func(o Order) pgtype.Text { return o.OrderID })
}

// JoinRule builds a rule that joins each child to its parent through fk and
// keeps the child only when the parent exists and pred holds for the pair.
// A nil pred checks existence only.
func JoinRule[C, P any](table TableName, name, reason string, fk func(C) pgtype.Text, parents Index[P], pred func(C, P) bool) Rule[C] {
	return RowRule(table, name, reason, func(child C) bool {
		parent, ok := parents.Lookup(fk(child))
		if !ok {
			return false
		}
		return pred == nil || pred(child, parent)
	})
}

// ForeignKeyRule builds a rule that only checks that the parent exists.
func ForeignKeyRule[C, P any](table TableName, name, reason string, fk func(C) pgtype.Text, parents Index[P]) Rule[C] {
	var exists func(C, P) bool
	return JoinRule(table, name, reason, fk, parents, exists)
}

// PaymentDates maps order_id to the latest accepted payment_date of that order.
// It feeds the strict delivery check.
type PaymentDates map[string]time.Time

// LatestPaymentDates collects the latest payment date per order.
func LatestPaymentDates(payments []Payment) PaymentDates {
	out := make(PaymentDates)
	for _, p := range payments {
		if !p.OrderID.Valid || !p.PaymentDate.Valid {
			continue
		}
		if cur, ok := out[p.OrderID.String]; !ok || p.PaymentDate.Time.After(cur) {
			out[p.OrderID.String] = p.PaymentDate.Time
		}
	}
	return out
}

// before reports whether a is strictly earlier than b. Missing dates are never
// before anything, so temporal rules leave them to the MISSING_* rules.
func before(a, b pgtype.Date) bool {
	if !a.Valid || !b.Valid {
		return false
	}
	return a.Time.Before(b.Time)
}
