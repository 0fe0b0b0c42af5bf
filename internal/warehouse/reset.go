package warehouse

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/medallion/internal/core"
	"github.com/JonMunkholm/medallion/internal/gold"
	"github.com/jackc/pgx/v5"
)

// Reset drops the silver and gold tables, plus the rejection ledger when
// withLedger is set. Bronze is never touched. The next run recreates what it
// needs. This is destructive; use with caution.
func (w *Warehouse) Reset(ctx context.Context, withLedger bool) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range w.resetStatements(withLedger) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}

func (w *Warehouse) resetStatements(withLedger bool) []string {
	var stmts []string
	for _, table := range core.AllTables() {
		stmts = append(stmts, dropTableSQL(w.schemas.Silver, string(table)))
	}
	for _, table := range []string{gold.TableCustomerAgg, gold.TableProductAgg} {
		stmts = append(stmts, dropTableSQL(w.schemas.Gold, table))
	}
	if withLedger {
		stmts = append(stmts, dropTableSQL(w.schemas.Audit, LedgerTable))
	}
	return stmts
}

func dropTableSQL(schema, table string) string {
	return "DROP TABLE IF EXISTS " + pgx.Identifier{schema, table}.Sanitize()
}
