package core

// rule.go is the rule engine: an ordered list of named predicates that splits a
// table into kept rows and rejected rows.
//
// Rules are data. Each table's chain is a []Rule[T] built by the functions in
// rules.go, which makes every rule addressable by name in tests and reports.
//
// Under PolicyFirstFailure (the default) rule i+1 only sees the rows rule i
// kept, so a row with several defects is attributed to the first rule in chain
// order that catches it. PolicyExhaustive evaluates every rule against the whole
// table and reports each failure; a row is still rejected exactly once for
// partition purposes.

import (
	"fmt"
	"strings"
)

// Policy selects how a rule chain attributes rows with several defects.
type Policy int

const (
	// PolicyFirstFailure threads kept rows from one rule into the next.
	PolicyFirstFailure Policy = iota
	// PolicyExhaustive reports every failed rule for each rejected row.
	PolicyExhaustive
)

func (p Policy) String() string {
	if p == PolicyExhaustive {
		return "exhaustive"
	}
	return "first"
}

// ParsePolicy parses "first" or "exhaustive".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first", "first_failure":
		return PolicyFirstFailure, nil
	case "exhaustive", "all":
		return PolicyExhaustive, nil
	default:
		return PolicyFirstFailure, fmt.Errorf("unknown rejection policy %q", s)
	}
}

// Predicate binds a rule to the rows it is applied to and returns the per-row
// check. The returned function reports true when the row should be kept.
type Predicate[T any] func(rows []T) func(T) bool

// Rule is a named, table-scoped predicate.
type Rule[T any] struct {
	Name      string    // Machine-readable rule name, e.g. "AGE_RANGE"
	Reason    string    // Human-readable reason recorded with each rejection
	AppliesTo TableName // Table the rule belongs to
	Predicate Predicate[T]
}

// RowRule builds a rule whose check only looks at the row itself.
func RowRule[T any](table TableName, name, reason string, keep func(T) bool) Rule[T] {
	return Rule[T]{
		Name:      name,
		Reason:    reason,
		AppliesTo: table,
		Predicate: func([]T) func(T) bool { return keep },
	}
}

// TableRule builds a rule whose check depends on the whole input of the rule,
// such as key uniqueness.
func TableRule[T any](table TableName, name, reason string, bind func(rows []T) func(T) bool) Rule[T] {
	return Rule[T]{Name: name, Reason: reason, AppliesTo: table, Predicate: bind}
}

// Rejection is one row excluded by one rule.
type Rejection[T any] struct {
	Row    T
	Rule   string
	Reason string
}

// ApplyRule applies a single rule. Both outputs preserve input order.
func ApplyRule[T any](rows []T, rule Rule[T]) (kept, rejected []T, ruleName string) {
	keep := rule.Predicate(rows)
	kept = make([]T, 0, len(rows))
	for _, row := range rows {
		if keep(row) {
			kept = append(kept, row)
		} else {
			rejected = append(rejected, row)
		}
	}
	return kept, rejected, rule.Name
}

// ApplyRules runs a rule chain over rows under the given policy.
// Rejections are grouped by rule in chain order, rows in input order.
func ApplyRules[T any](rows []T, rules []Rule[T], policy Policy) ([]T, []Rejection[T]) {
	if policy == PolicyExhaustive {
		return applyExhaustive(rows, rules)
	}

	var rejections []Rejection[T]
	kept := rows
	for _, rule := range rules {
		var rejected []T
		kept, rejected, _ = ApplyRule(kept, rule)
		for _, row := range rejected {
			rejections = append(rejections, Rejection[T]{Row: row, Rule: rule.Name, Reason: rule.Reason})
		}
	}
	return kept, rejections
}

func applyExhaustive[T any](rows []T, rules []Rule[T]) ([]T, []Rejection[T]) {
	failed := make([]bool, len(rows))
	var rejections []Rejection[T]

	for _, rule := range rules {
		keep := rule.Predicate(rows)
		for i, row := range rows {
			if keep(row) {
				continue
			}
			failed[i] = true
			rejections = append(rejections, Rejection[T]{Row: row, Rule: rule.Name, Reason: rule.Reason})
		}
	}

	kept := make([]T, 0, len(rows))
	for i, row := range rows {
		if !failed[i] {
			kept = append(kept, row)
		}
	}
	return kept, rejections
}

// RuleNames returns the names of a chain in order.
func RuleNames[T any](rules []Rule[T]) []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name
	}
	return names
}
