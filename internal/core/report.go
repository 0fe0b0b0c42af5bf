package core

import "time"

// RuleCount is the number of rejections one rule produced.
type RuleCount struct {
	Rule   string `json:"rule"`
	Reason string `json:"reason"`
	Rows   int    `json:"rows"`
}

// TableReport summarizes one table of a run. Input always equals Accepted plus
// Rejected; under the exhaustive policy the per-rule counts may sum to more
// than Rejected because a row can fail several rules.
type TableReport struct {
	Table    TableName   `json:"table"`
	Input    int         `json:"input"`
	Accepted int         `json:"accepted"`
	Rejected int         `json:"rejected"`
	Rules    []RuleCount `json:"rules,omitempty"`
}

// Report summarizes a run, tables in processing order.
type Report struct {
	Stage     string        `json:"stage"`
	Policy    string        `json:"policy"`
	Strict    bool          `json:"strict_delivery"`
	Tables    []TableReport `json:"tables"`
	CreatedAt time.Time     `json:"created_at"`
}

// Table returns the report of one table.
func (r Report) Table(name TableName) (TableReport, bool) {
	for _, t := range r.Tables {
		if t.Table == name {
			return t, true
		}
	}
	return TableReport{}, false
}

// Totals sums the row counts over all tables.
func (r Report) Totals() (input, accepted, rejected int) {
	for _, t := range r.Tables {
		input += t.Input
		accepted += t.Accepted
		rejected += t.Rejected
	}
	return input, accepted, rejected
}

// tableReport builds a TableReport from a chain and its outcome. Rules that
// rejected nothing are omitted; the rest keep chain order.
func tableReport[T any](table TableName, input, accepted int, rules []Rule[T], rejections []Rejection[T]) TableReport {
	counts := make(map[string]int, len(rules))
	for _, rj := range rejections {
		counts[rj.Rule]++
	}
	rep := TableReport{
		Table:    table,
		Input:    input,
		Accepted: accepted,
		Rejected: input - accepted,
	}
	for _, rule := range rules {
		if n := counts[rule.Name]; n > 0 {
			rep.Rules = append(rep.Rules, RuleCount{Rule: rule.Name, Reason: rule.Reason, Rows: n})
		}
	}
	return rep
}
