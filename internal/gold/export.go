package gold

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/JonMunkholm/medallion/internal/core"
)

// ExportCSV writes each table to <dir>/<name>.csv with a header row. Missing
// values are written as empty cells. The directory is created if needed.
func ExportCSV(dir string, tables []Table) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	paths := make([]string, 0, len(tables))
	for _, t := range tables {
		path := filepath.Join(dir, t.Name+".csv")
		if err := writeCSV(path, t); err != nil {
			return paths, fmt.Errorf("export %s: %w", t.Name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeCSV(path string, t Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Name
	}
	if err := w.Write(header); err != nil {
		return err
	}

	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = formatCell(row[i])
			}
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func formatCell(v any) string {
	switch x := core.PlainValue(v).(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// CSVExporter writes gold tables into a fixed directory.
type CSVExporter struct {
	Dir string
}

// Export writes tables with ExportCSV.
func (e CSVExporter) Export(tables []Table) ([]string, error) {
	return ExportCSV(e.Dir, tables)
}
