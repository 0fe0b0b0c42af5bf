package core

import "fmt"

// DefaultOrder is the only order in which every table follows its parents.
var DefaultOrder = []TableName{
	TableCustomers,
	TableProducts,
	TableOrders,
	TablePayments,
	TableDelivery,
}

// Plan is a validated table processing order.
type Plan struct {
	order []TableName
}

// NewPlan validates order: every known table exactly once, and every table
// after all tables it depends on. Validating payments before orders would check
// payments against unvalidated orders, so such an order is refused rather than
// run.
func NewPlan(order []TableName) (Plan, error) {
	if len(order) != len(schemas) {
		return Plan{}, fmt.Errorf("%w: expected %d tables, got %d", ErrStageOrder, len(schemas), len(order))
	}

	done := make(map[TableName]bool, len(order))
	for _, table := range order {
		schema, ok := schemas[table]
		if !ok {
			return Plan{}, fmt.Errorf("%w: unknown table %q", ErrStageOrder, table)
		}
		if done[table] {
			return Plan{}, fmt.Errorf("%w: table %q listed twice", ErrStageOrder, table)
		}
		for _, dep := range schema.DependsOn {
			if !done[dep] {
				return Plan{}, fmt.Errorf("%w: %s must run after %s", ErrStageOrder, table, dep)
			}
		}
		done[table] = true
	}

	p := Plan{order: make([]TableName, len(order))}
	copy(p.order, order)
	return p, nil
}

// Tables returns the planned order.
func (p Plan) Tables() []TableName {
	out := make([]TableName, len(p.order))
	copy(out, p.order)
	return out
}

// Downstream returns every table in the plan that depends, directly or
// transitively, on one of roots. Roots themselves are not included.
func (p Plan) Downstream(roots []TableName) []TableName {
	hit := make(map[TableName]bool, len(roots))
	for _, r := range roots {
		hit[r] = true
	}
	var out []TableName
	for _, table := range p.order {
		if hit[table] {
			continue
		}
		for _, dep := range schemas[table].DependsOn {
			if hit[dep] {
				hit[table] = true
				out = append(out, table)
				break
			}
		}
	}
	return out
}
