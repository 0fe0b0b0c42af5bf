package web

// errors.go turns run errors into JSON responses.
//
// The technical error is logged with the request ID; the client gets the
// core.MapError message and code. Structural faults also list every faulted
// table and column, since the caller has to fix bronze before retrying.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/medallion/internal/core"
	"github.com/JonMunkholm/medallion/internal/logging"
	"github.com/JonMunkholm/medallion/internal/pipeline"
)

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Action  string      `json:"action,omitempty"`
	Code    string      `json:"code"`
	RunID   string      `json:"run_id,omitempty"`
	Faults  []FaultJSON `json:"faults,omitempty"`
	Blocked []string    `json:"blocked,omitempty"`
}

// FaultJSON is one structural fault. Column is empty for a missing table.
type FaultJSON struct {
	Table  string `json:"table"`
	Column string `json:"column,omitempty"`
}

// statusFor picks the HTTP status of a run error.
func statusFor(err error) int {
	switch {
	case core.IsStructural(err):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrRunInProgress), errors.Is(err, pipeline.ErrTooManyRuns):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes its user-facing form.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, runID string) {
	status := statusFor(err)
	msg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
		"run_id", runID,
	)

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		RunID:   runID,
	}
	var cerr *core.ContractError
	if errors.As(err, &cerr) {
		for _, f := range cerr.Faults {
			resp.Faults = append(resp.Faults, FaultJSON{Table: string(f.Table), Column: f.Column})
		}
		for _, t := range cerr.Blocked {
			resp.Blocked = append(resp.Blocked, string(t))
		}
	}

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "30")
	}
	writeJSON(w, status, resp)
}
