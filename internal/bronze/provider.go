// Package bronze supplies bronze snapshots to the pipeline.
//
// A Provider returns every bronze table it can find. Tables it cannot find are
// left out of the snapshot; the transform then reports them as structural
// faults, so providers never decide what is required.
package bronze

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/medallion/internal/core"
	"github.com/JonMunkholm/medallion/internal/logging"
)

// ContextCheckInterval is how often, in rows, a read checks for cancellation.
var ContextCheckInterval = 100

// Provider reads one bronze snapshot.
type Provider interface {
	Snapshot(ctx context.Context) (core.BronzeSnapshot, error)
}

// Static serves a fixed snapshot. Tests and embedded callers use it.
type Static core.BronzeSnapshot

// Snapshot returns the fixed snapshot.
func (s Static) Snapshot(ctx context.Context) (core.BronzeSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return core.BronzeSnapshot(s), nil
}

// CSVDir reads <Dir>/<table>.csv for every pipeline table.
type CSVDir struct {
	Dir string
}

// NewCSVDir creates a provider over dir.
func NewCSVDir(dir string) *CSVDir {
	return &CSVDir{Dir: dir}
}

// Snapshot reads every table file. A missing file leaves the table out.
func (p *CSVDir) Snapshot(ctx context.Context) (core.BronzeSnapshot, error) {
	logger := logging.FromContext(ctx)
	snapshot := make(core.BronzeSnapshot)

	for _, table := range core.AllTables() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(p.Dir, string(table)+".csv")
		raw, bytesRead, err := readFile(ctx, path)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("bronze file not found", "table", table, "path", path)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read bronze %s: %w", table, err)
		}

		logger.Debug("bronze file read", "table", table, "rows", len(raw.Rows), "bytes", bytesRead)
		snapshot[table] = raw
	}
	return snapshot, nil
}

func readFile(ctx context.Context, path string) (core.RawTable, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.RawTable{}, 0, err
	}
	defer f.Close()

	src := newCSVReader(f)
	raw, err := ReadCSV(ctx, src)
	return raw, src.BytesRead, err
}

// ReadCSV parses a CSV stream with a header row into a raw table. Header names
// are trimmed and lowercased; the first of two equal names wins. Short rows
// leave the trailing columns unset, and extra cells are ignored.
func ReadCSV(ctx context.Context, r io.Reader) (core.RawTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return core.RawTable{}, nil
	}
	if err != nil {
		return core.RawTable{}, fmt.Errorf("read header: %w", err)
	}

	raw := core.RawTable{Columns: make([]string, 0, len(header))}
	positions := make([]int, 0, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		raw.Columns = append(raw.Columns, name)
		positions = append(positions, i)
	}

	for line := 2; ; line++ {
		if line%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return core.RawTable{}, fmt.Errorf("cancelled at line %d: %w", line, err)
			}
		}

		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return core.RawTable{}, fmt.Errorf("line %d: %w", line, err)
		}

		row := make(core.RawRow, len(raw.Columns))
		for j, col := range raw.Columns {
			if pos := positions[j]; pos < len(record) {
				row[col] = record[pos]
			}
		}
		raw.Rows = append(raw.Rows, row)
	}
	return raw, nil
}
