package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStageOrder is returned when a processing order puts a table before one of
// the tables it validates against.
var ErrStageOrder = errors.New("stage order violates table dependencies")

// StructuralFault is a contract violation in the bronze input: a table that is
// missing entirely (Column is empty) or a required column that is absent.
// Row-level data defects never produce a StructuralFault.
type StructuralFault struct {
	Table  TableName
	Column string
}

func (f *StructuralFault) Error() string {
	if f.Column == "" {
		return fmt.Sprintf("missing table %q", f.Table)
	}
	return fmt.Sprintf("table %q: missing required column %q", f.Table, f.Column)
}

// ContractError aborts a run. It carries every structural fault found and the
// tables that could not run because a table they depend on is faulted.
type ContractError struct {
	Faults  []StructuralFault
	Blocked []TableName
}

func (e *ContractError) Error() string {
	parts := make([]string, len(e.Faults))
	for i := range e.Faults {
		parts[i] = e.Faults[i].Error()
	}
	msg := "structural fault: " + strings.Join(parts, "; ")
	if len(e.Blocked) > 0 {
		blocked := make([]string, len(e.Blocked))
		for i, t := range e.Blocked {
			blocked[i] = string(t)
		}
		msg += " (blocked: " + strings.Join(blocked, ", ") + ")"
	}
	return msg
}

// Unwrap exposes each fault so errors.As(err, **StructuralFault) works.
func (e *ContractError) Unwrap() []error {
	errs := make([]error, len(e.Faults))
	for i := range e.Faults {
		errs[i] = &e.Faults[i]
	}
	return errs
}

// FaultedTables returns the faulted tables in fault order, without repeats.
func (e *ContractError) FaultedTables() []TableName {
	seen := make(map[TableName]bool)
	var out []TableName
	for _, f := range e.Faults {
		if !seen[f.Table] {
			seen[f.Table] = true
			out = append(out, f.Table)
		}
	}
	return out
}

// IsStructural reports whether err is a bronze contract violation as opposed to
// an I/O or configuration error.
func IsStructural(err error) bool {
	var fault *StructuralFault
	return errors.As(err, &fault)
}
