package warehouse

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JonMunkholm/medallion/internal/core"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/sync/errgroup"
)

// undefinedTable is the SQLSTATE Postgres returns for a missing relation.
const undefinedTable = "42P01"

// Snapshot reads every bronze table concurrently. A table that does not exist
// is left out of the snapshot so the transform reports it as a structural
// fault. Any other error aborts the read.
func (w *Warehouse) Snapshot(ctx context.Context) (core.BronzeSnapshot, error) {
	var (
		mu       sync.Mutex
		snapshot = make(core.BronzeSnapshot)
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, table := range core.AllTables() {
		g.Go(func() error {
			raw, ok, err := w.readBronze(ctx, table)
			if err != nil {
				return fmt.Errorf("read bronze %s: %w", table, err)
			}
			if !ok {
				return nil
			}
			mu.Lock()
			snapshot[table] = raw
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (w *Warehouse) readBronze(ctx context.Context, table core.TableName) (core.RawTable, bool, error) {
	rows, err := w.pool.Query(ctx, selectAllSQL(w.schemas.Bronze, string(table)))
	if err != nil {
		if isUndefinedTable(err) {
			return core.RawTable{}, false, nil
		}
		return core.RawTable{}, false, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	raw := core.RawTable{Columns: make([]string, len(fields))}
	for i, f := range fields {
		raw.Columns[i] = f.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return core.RawTable{}, false, err
		}
		row := make(core.RawRow, len(values))
		for i, v := range values {
			row[raw.Columns[i]] = v
		}
		raw.Rows = append(raw.Rows, row)
	}
	if err := rows.Err(); err != nil {
		if isUndefinedTable(err) {
			return core.RawTable{}, false, nil
		}
		return core.RawTable{}, false, err
	}
	return raw, true, nil
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == undefinedTable
}
