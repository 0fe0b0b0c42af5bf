package warehouse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/medallion/internal/core"
	"github.com/JonMunkholm/medallion/internal/gold"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// ReplaceSilver replaces every silver table with the accepted rows of a run.
// All tables are written in one transaction, so readers never see a partial
// run.
func (w *Warehouse) ReplaceSilver(ctx context.Context, silver core.SilverTables) error {
	return w.inTx(ctx, "silver", func(tx pgx.Tx) error {
		return w.replaceSilver(ctx, tx, silver)
	})
}

// Publish replaces silver and appends the run's rejections in one
// transaction. Either both land or neither does.
func (w *Warehouse) Publish(ctx context.Context, runID uuid.UUID, silver core.SilverTables, entries []core.Entry) error {
	rows, err := ledgerRows(runID, entries)
	if err != nil {
		return err
	}
	return w.inTx(ctx, "publish", func(tx pgx.Tx) error {
		if err := w.replaceSilver(ctx, tx, silver); err != nil {
			return err
		}
		return w.appendLedger(ctx, tx, rows)
	})
}

// inTx runs fn in a transaction and commits when it succeeds.
func (w *Warehouse) inTx(ctx context.Context, what string, fn func(pgx.Tx) error) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", what, err)
	}
	return nil
}

func (w *Warehouse) replaceSilver(ctx context.Context, tx pgx.Tx, silver core.SilverTables) error {
	if _, err := tx.Exec(ctx, createSchemaSQL(w.schemas.Silver)); err != nil {
		return fmt.Errorf("create schema %s: %w", w.schemas.Silver, err)
	}
	for _, table := range core.AllTables() {
		schema, _ := core.SchemaFor(table)
		cols := silverColumns(schema)
		rows := make([][]any, 0, silver.Len(table))
		for _, r := range silver.Rows(table) {
			rows = append(rows, r.Values())
		}
		if err := replaceTable(ctx, tx, w.schemas.Silver, string(table), cols, rows); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceGold replaces the gold tables.
func (w *Warehouse) ReplaceGold(ctx context.Context, tables []gold.Table) error {
	return w.inTx(ctx, "gold", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createSchemaSQL(w.schemas.Gold)); err != nil {
			return fmt.Errorf("create schema %s: %w", w.schemas.Gold, err)
		}
		for _, t := range tables {
			if err := replaceTable(ctx, tx, w.schemas.Gold, t.Name, goldColumns(t), t.Rows); err != nil {
				return err
			}
		}
		return nil
	})
}

func goldColumns(t gold.Table) []column {
	cols := make([]column, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = column{name: c.Name, pgType: pgType(c.Type)}
	}
	return cols
}

// replaceTable creates the table if needed, truncates it and bulk-copies rows.
func replaceTable(ctx context.Context, tx pgx.Tx, schema, table string, cols []column, rows [][]any) error {
	if _, err := tx.Exec(ctx, createTableSQL(schema, table, cols)); err != nil {
		return fmt.Errorf("create table %s.%s: %w", schema, table, err)
	}
	if _, err := tx.Exec(ctx, truncateSQL(schema, table)); err != nil {
		return fmt.Errorf("truncate %s.%s: %w", schema, table, err)
	}
	if len(rows) == 0 {
		return nil
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{schema, table}, columnNames(cols), pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy into %s.%s: %w", schema, table, err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("copy into %s.%s: wrote %d of %d rows", schema, table, n, len(rows))
	}
	return nil
}

// AppendLedger appends rejections to the audit table. Earlier runs are kept.
func (w *Warehouse) AppendLedger(ctx context.Context, runID uuid.UUID, entries []core.Entry) error {
	rows, err := ledgerRows(runID, entries)
	if err != nil {
		return err
	}
	return w.inTx(ctx, "ledger", func(tx pgx.Tx) error {
		return w.appendLedger(ctx, tx, rows)
	})
}

func (w *Warehouse) appendLedger(ctx context.Context, tx pgx.Tx, rows [][]any) error {
	if _, err := tx.Exec(ctx, createSchemaSQL(w.schemas.Audit)); err != nil {
		return fmt.Errorf("create schema %s: %w", w.schemas.Audit, err)
	}
	if _, err := tx.Exec(ctx, createTableSQL(w.schemas.Audit, LedgerTable, ledgerColumns)); err != nil {
		return fmt.Errorf("create ledger table: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{w.schemas.Audit, LedgerTable}, columnNames(ledgerColumns), pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy ledger: %w", err)
	}
	return nil
}

// ledgerRows lays out entries in ledgerColumns order.
func ledgerRows(runID uuid.UUID, entries []core.Entry) ([][]any, error) {
	rows := make([][]any, 0, len(entries))
	for i, e := range entries {
		data, err := json.Marshal(e.RowData)
		if err != nil {
			return nil, fmt.Errorf("encode ledger entry %d: %w", i, err)
		}
		rows = append(rows, []any{
			pgtype.UUID{Bytes: runID, Valid: true},
			e.Stage, string(e.TableName), e.RuleName, e.Reason,
			json.RawMessage(data), e.CreatedAt,
		})
	}
	return rows, nil
}
