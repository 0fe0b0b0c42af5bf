package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Ledger paging limits.
const (
	DefaultLedgerPageSize = 50
	MaxLedgerPageSize     = 500
)

// LedgerFilter selects ledger rows. Zero fields match everything.
type LedgerFilter struct {
	RunID  uuid.UUID
	Table  string
	Rule   string
	Limit  int
	Offset int
}

// LedgerRow is one stored rejection.
type LedgerRow struct {
	RunID     uuid.UUID       `json:"run_id"`
	Stage     string          `json:"stage"`
	Table     string          `json:"table_name"`
	Rule      string          `json:"rule_name"`
	Reason    string          `json:"reason"`
	RowData   json.RawMessage `json:"row_data"`
	CreatedAt time.Time       `json:"created_at"`
}

// LedgerPage is one page of a ledger query.
type LedgerPage struct {
	Entries    []LedgerRow `json:"entries"`
	TotalCount int64       `json:"total_count"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// Rejections returns one page of ledger rows, newest run first. A ledger table
// that does not exist yet reads as empty.
func (w *Warehouse) Rejections(ctx context.Context, f LedgerFilter) (*LedgerPage, error) {
	f = f.withDefaults()
	where, args := f.where().Build()
	table := pgx.Identifier{w.schemas.Audit, LedgerTable}.Sanitize()

	page := &LedgerPage{Entries: []LedgerRow{}, Page: f.Offset/f.Limit + 1, PageSize: f.Limit, TotalPages: 1}

	if err := w.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table+where, args...).Scan(&page.TotalCount); err != nil {
		if isUndefinedTable(err) {
			return page, nil
		}
		return nil, fmt.Errorf("count rejections: %w", err)
	}
	if n := int((page.TotalCount + int64(f.Limit) - 1) / int64(f.Limit)); n > 1 {
		page.TotalPages = n
	}

	query := selectLedgerSQL(table, where) + fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	err := w.scanLedger(ctx, query, append(args, f.Limit, f.Offset), func(r LedgerRow) error {
		page.Entries = append(page.Entries, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// StreamRejections calls fn for every matching ledger row, ignoring Limit and
// Offset. Rows are not buffered.
func (w *Warehouse) StreamRejections(ctx context.Context, f LedgerFilter, fn func(LedgerRow) error) error {
	where, args := f.where().Build()
	table := pgx.Identifier{w.schemas.Audit, LedgerTable}.Sanitize()
	err := w.scanLedger(ctx, selectLedgerSQL(table, where), args, fn)
	if isUndefinedTable(err) {
		return nil
	}
	return err
}

func (w *Warehouse) scanLedger(ctx context.Context, query string, args []any, fn func(LedgerRow) error) error {
	rows, err := w.pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query rejections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r     LedgerRow
			runID pgtype.UUID
			data  []byte
		)
		if err := rows.Scan(&runID, &r.Stage, &r.Table, &r.Rule, &r.Reason, &data, &r.CreatedAt); err != nil {
			return fmt.Errorf("scan rejection: %w", err)
		}
		r.RunID = uuid.UUID(runID.Bytes)
		r.RowData = json.RawMessage(data)
		if err := fn(r); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read rejections: %w", err)
	}
	return nil
}

func (f LedgerFilter) withDefaults() LedgerFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultLedgerPageSize
	}
	if f.Limit > MaxLedgerPageSize {
		f.Limit = MaxLedgerPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func (f LedgerFilter) where() *whereBuilder {
	wb := newWhereBuilder()
	if f.RunID != uuid.Nil {
		wb.Add("run_id", pgtype.UUID{Bytes: f.RunID, Valid: true})
	}
	wb.Add("table_name", f.Table)
	wb.Add("rule_name", f.Rule)
	return wb
}

func selectLedgerSQL(table, where string) string {
	return "SELECT " + strings.Join(columnNames(ledgerColumns), ", ") + " FROM " + table + where +
		" ORDER BY created_at DESC, table_name, rule_name"
}

// whereBuilder assembles an AND-joined WHERE clause with numbered parameters.
// Empty string values are skipped.
type whereBuilder struct {
	conditions []string
	args       []any
}

func newWhereBuilder() *whereBuilder {
	return &whereBuilder{}
}

// Add appends "column = $n" unless value is an empty string.
func (wb *whereBuilder) Add(column string, value any) {
	if s, ok := value.(string); ok && s == "" {
		return
	}
	wb.args = append(wb.args, value)
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s = $%d", pgx.Identifier{column}.Sanitize(), len(wb.args)))
}

// Build returns the clause, with a leading space, and its arguments.
func (wb *whereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}
