package core

import (
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Snapshot is the JSON-safe image of a rejected row, keyed by silver column
// name. Missing values are nil, dates are YYYY-MM-DD, numerics are json.Number.
type Snapshot map[string]any

// Entry is a single rejection record.
type Entry struct {
	Stage     string    `json:"stage"`
	TableName TableName `json:"table_name"`
	RuleName  string    `json:"rule_name"`
	Reason    string    `json:"reason"`
	RowData   Snapshot  `json:"row_data"`
	CreatedAt time.Time `json:"created_at"`
}

// Ledger is the append-only rejection log of one run. It is not safe for
// concurrent use; a run records from a single goroutine.
type Ledger struct {
	entries []Entry
	now     func() time.Time
}

// NewLedger returns an empty ledger that stamps entries with now(). A nil now
// uses the wall clock.
func NewLedger(now func() time.Time) *Ledger {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Ledger{now: now}
}

// Record appends one rejection. Entries are never deduplicated.
func (l *Ledger) Record(stage string, table TableName, ruleName, reason string, snapshot Snapshot) {
	l.entries = append(l.entries, Entry{
		Stage:     stage,
		TableName: table,
		RuleName:  ruleName,
		Reason:    reason,
		RowData:   snapshot,
		CreatedAt: l.now(),
	})
}

// Entries returns a copy of all entries in record order.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Ledger) Len() int { return len(l.entries) }

// ForTable returns the entries of one table in record order.
func (l *Ledger) ForTable(table TableName) []Entry {
	var out []Entry
	for _, e := range l.entries {
		if e.TableName == table {
			out = append(out, e)
		}
	}
	return out
}

// CountsByRule returns the number of entries per rule name for one table.
func (l *Ledger) CountsByRule(table TableName) map[string]int {
	counts := make(map[string]int)
	for _, e := range l.entries {
		if e.TableName == table {
			counts[e.RuleName]++
		}
	}
	return counts
}

// MarshalJSON encodes the entries as an array. Snapshot maps encode with sorted
// keys, so the output is stable for a given run.
func (l *Ledger) MarshalJSON() ([]byte, error) {
	if l == nil || l.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.entries)
}

// SnapshotOf converts a typed record into its ledger snapshot.
func SnapshotOf(r Record) Snapshot {
	schema := schemas[r.Table()]
	values := r.Values()
	snap := make(Snapshot, len(values))
	for i, v := range values {
		if i >= len(schema.Fields) {
			break
		}
		snap[schema.Fields[i].Name] = PlainValue(v)
	}
	return snap
}

// PlainValue unwraps a pgtype value into a JSON-friendly scalar: string, date
// string, json.Number, int64, bool, or nil when missing.
func PlainValue(v any) any {
	switch x := v.(type) {
	case pgtype.Text:
		if !x.Valid {
			return nil
		}
		return x.String
	case pgtype.Date:
		if !x.Valid {
			return nil
		}
		return x.Time.Format(time.DateOnly)
	case pgtype.Numeric:
		d, ok := DecimalFromNumeric(x)
		if !ok {
			return nil
		}
		return json.Number(d.String())
	case pgtype.Int8:
		if !x.Valid {
			return nil
		}
		return x.Int64
	case pgtype.Bool:
		if !x.Valid {
			return nil
		}
		return x.Bool
	default:
		return v
	}
}
