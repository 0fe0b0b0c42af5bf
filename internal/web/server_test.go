package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JonMunkholm/medallion/internal/core"
	"github.com/JonMunkholm/medallion/internal/pipeline"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTrigger struct {
	res    *pipeline.RunResult
	err    error
	latest *pipeline.RunResult

	gotDeadline bool
}

func (f *fakeTrigger) Run(ctx context.Context) (*pipeline.RunResult, error) {
	_, f.gotDeadline = ctx.Deadline()
	return f.res, f.err
}

func (f *fakeTrigger) Latest() *pipeline.RunResult { return f.latest }

var runID = uuid.MustParse("3d8c2b1a-7e4f-4a9b-8c6d-1f2e3a4b5c6d")

func serve(t *testing.T, s *Server, method, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// ----------------------------------------------------------------------------
// POST /api/runs
// ----------------------------------------------------------------------------

func TestHandleRun_Success(t *testing.T) {
	trigger := &fakeTrigger{res: &pipeline.RunResult{
		RunID:  runID,
		Status: pipeline.StatusSucceeded,
		Report: &core.Report{Tables: []core.TableReport{{Table: core.TableOrders, Input: 3, Accepted: 2, Rejected: 1}}},
	}}
	s := NewServer(trigger, Options{RunTimeout: time.Minute})

	rec := serve(t, s, http.MethodPost, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, trigger.gotDeadline, "runs get the configured timeout")

	body := decode[map[string]any](t, rec)
	assert.Equal(t, runID.String(), body["run_id"])
	assert.Equal(t, "succeeded", body["status"])
	assert.NotContains(t, body, "Result")
}

func TestHandleRun_StructuralFault(t *testing.T) {
	trigger := &fakeTrigger{
		res: &pipeline.RunResult{RunID: runID, Status: pipeline.StatusFailed},
		err: &core.ContractError{
			Faults:  []core.StructuralFault{{Table: core.TableOrders, Column: "total_amount"}},
			Blocked: []core.TableName{core.TablePayments, core.TableDelivery},
		},
	}
	s := NewServer(trigger, Options{})

	rec := serve(t, s, http.MethodPost, "/api/runs", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "SCH002", body.Code)
	assert.Equal(t, runID.String(), body.RunID)
	assert.Equal(t, []FaultJSON{{Table: "orders", Column: "total_amount"}}, body.Faults)
	assert.Equal(t, []string{"payments", "delivery"}, body.Blocked)
}

func TestHandleRun_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"busy", pipeline.ErrRunInProgress, http.StatusTooManyRequests, "RUN001"},
		{"saturated", pipeline.ErrTooManyRuns, http.StatusTooManyRequests, "RUN002"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "RUN004"},
		{"database", errors.New("replace silver: dial tcp: connection refused"), http.StatusInternalServerError, "DB001"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(&fakeTrigger{err: tt.err}, Options{})
			rec := serve(t, s, http.MethodPost, "/api/runs", nil)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
			if tt.status == http.StatusTooManyRequests {
				assert.NotEmpty(t, rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestHandleRun_APIKey(t *testing.T) {
	trigger := &fakeTrigger{res: &pipeline.RunResult{RunID: runID}}
	s := NewServer(trigger, Options{APIKeys: []string{"secret"}})

	assert.Equal(t, http.StatusUnauthorized, serve(t, s, http.MethodPost, "/api/runs", nil).Code)
	assert.Equal(t, http.StatusForbidden, serve(t, s, http.MethodPost, "/api/runs", http.Header{"X-Api-Key": {"nope"}}).Code)
	assert.Equal(t, http.StatusOK, serve(t, s, http.MethodPost, "/api/runs", http.Header{"X-Api-Key": {"secret"}}).Code)
	assert.Equal(t, http.StatusNotFound, serve(t, s, http.MethodGet, "/api/runs/latest", nil).Code, "reads need no key")
}

// ----------------------------------------------------------------------------
// Other routes
// ----------------------------------------------------------------------------

func TestHandleLatestRun(t *testing.T) {
	trigger := &fakeTrigger{}
	s := NewServer(trigger, Options{})

	rec := serve(t, s, http.MethodGet, "/api/runs/latest", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	trigger.latest = &pipeline.RunResult{RunID: runID, Status: pipeline.StatusFailed}
	rec = serve(t, s, http.MethodGet, "/api/runs/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "failed", decode[map[string]any](t, rec)["status"])
}

func TestHandleHealth(t *testing.T) {
	s := NewServer(&fakeTrigger{}, Options{})
	assert.Equal(t, http.StatusOK, serve(t, s, http.MethodGet, "/healthz", nil).Code)

	down := NewServer(&fakeTrigger{}, Options{Health: func(context.Context) error { return errors.New("ping failed") }})
	rec := serve(t, down, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", decode[map[string]string](t, rec)["status"])
}

func TestMetricsRoute(t *testing.T) {
	without := NewServer(&fakeTrigger{}, Options{})
	assert.Equal(t, http.StatusNotFound, serve(t, without, http.MethodGet, "/metrics", nil).Code)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("up 1\n")) })
	with := NewServer(&fakeTrigger{}, Options{Metrics: metrics})
	rec := serve(t, with, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "up 1\n", rec.Body.String())
}

func TestSecurityHeaders(t *testing.T) {
	rec := serve(t, NewServer(&fakeTrigger{}, Options{}), http.MethodGet, "/healthz", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestShutdownWithoutStart(t *testing.T) {
	assert.NoError(t, NewServer(&fakeTrigger{}, Options{}).Shutdown(context.Background()))
}
