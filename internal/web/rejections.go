package web

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/medallion/internal/core"
	"github.com/JonMunkholm/medallion/internal/logging"
	"github.com/JonMunkholm/medallion/internal/warehouse"
	"github.com/google/uuid"
)

// RejectionStore reads the rejection ledger. *warehouse.Warehouse implements it.
type RejectionStore interface {
	Rejections(ctx context.Context, f warehouse.LedgerFilter) (*warehouse.LedgerPage, error)
	StreamRejections(ctx context.Context, f warehouse.LedgerFilter, fn func(warehouse.LedgerRow) error) error
}

var rejectionCSVHeader = []string{"run_id", "stage", "table_name", "rule_name", "reason", "row_data", "created_at"}

// handleRejections returns one page of ledger rows.
func (s *Server) handleRejections(w http.ResponseWriter, r *http.Request) {
	f, ok := s.parseLedgerFilter(w, r)
	if !ok {
		return
	}

	page, err := s.opts.Rejections.Rejections(r.Context(), f)
	if err != nil {
		s.respondError(w, r, err, runIDString(f.RunID))
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleExportRejections streams every matching ledger row as CSV.
func (s *Server) handleExportRejections(w http.ResponseWriter, r *http.Request) {
	f, ok := s.parseLedgerFilter(w, r)
	if !ok {
		return
	}

	name := "rejections.csv"
	if f.RunID != uuid.Nil {
		name = fmt.Sprintf("rejections_%s.csv", f.RunID)
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))

	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(rejectionCSVHeader); err != nil {
		return
	}

	n := 0
	err := s.opts.Rejections.StreamRejections(r.Context(), f, func(row warehouse.LedgerRow) error {
		if err := csvWriter.Write([]string{
			row.RunID.String(), row.Stage, row.Table, row.Rule, row.Reason,
			string(row.RowData), row.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
		n++
		if n%1000 == 0 {
			csvWriter.Flush()
			return csvWriter.Error()
		}
		return nil
	})
	csvWriter.Flush()
	if err != nil {
		// Headers are gone; all that is left is to log.
		logging.FromContext(r.Context()).Error("rejection export failed", "error", err, "rows", n)
	}
}

func runIDString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

// parseLedgerFilter reads run_id, table, rule, page and page_size. run_id
// "latest" means the last finished run. It writes a 400 and returns false on
// bad input.
func (s *Server) parseLedgerFilter(w http.ResponseWriter, r *http.Request) (warehouse.LedgerFilter, bool) {
	q := r.URL.Query()
	var f warehouse.LedgerFilter

	switch raw := q.Get("run_id"); raw {
	case "":
	case "latest":
		latest := s.trigger.Latest()
		if latest == nil {
			badRequest(w, "no run has finished yet", "POST /api/runs to start one")
			return warehouse.LedgerFilter{}, false
		}
		f.RunID = latest.RunID
	default:
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(w, "run_id is not a UUID", "Pass a run_id from a run summary, or \"latest\"")
			return warehouse.LedgerFilter{}, false
		}
		f.RunID = id
	}

	if t := q.Get("table"); t != "" {
		if _, ok := core.SchemaFor(core.TableName(t)); !ok {
			badRequest(w, fmt.Sprintf("unknown table %q", t), "Use one of the silver table names")
			return warehouse.LedgerFilter{}, false
		}
		f.Table = t
	}
	f.Rule = q.Get("rule")

	size := warehouse.DefaultLedgerPageSize
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(w, "page_size must be a positive integer", "")
			return warehouse.LedgerFilter{}, false
		}
		size = min(n, warehouse.MaxLedgerPageSize)
	}
	page := 1
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(w, "page must be a positive integer", "")
			return warehouse.LedgerFilter{}, false
		}
		page = n
	}
	f.Limit = size
	f.Offset = (page - 1) * size

	return f, true
}

func badRequest(w http.ResponseWriter, msg, action string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   msg,
		Message: msg,
		Action:  action,
		Code:    "REQ001",
	})
}
