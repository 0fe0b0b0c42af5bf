package web

import (
	"context"
	"net/http"
)

// handleRun runs the pipeline synchronously and returns the run summary.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}

	res, err := s.trigger.Run(ctx)
	if err != nil {
		runID := ""
		if res != nil {
			runID = res.RunID.String()
		}
		s.respondError(w, r, err, runID)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleLatestRun returns the last finished run, successful or not.
func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	latest := s.trigger.Latest()
	if latest == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "no run has finished yet",
			Message: "no run has finished yet",
			Action:  "POST /api/runs to start one",
			Code:    "RUN000",
		})
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

// handleHealth reports whether the server and its database are usable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health != nil {
		if err := s.opts.Health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
