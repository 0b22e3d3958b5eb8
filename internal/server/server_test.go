package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/neon-billing-alerts/internal/server"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/alerts"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/billing"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/model"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/neon"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/pricing"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/runner"
)

type fakeChecker struct {
	res *runner.Result
	err error
}

func (f *fakeChecker) Run(context.Context) (*runner.Result, error)   { return f.res, f.err }
func (f *fakeChecker) Usage(context.Context) (*runner.Result, error) { return f.res, f.err }

func sampleResult(t *testing.T) *runner.Result {
	t.Helper()
	plan, ok := pricing.Builtin().Lookup("launch")
	require.True(t, ok)
	snap := &model.UsageSnapshot{
		ProjectID:          "proj-1",
		ComputeTimeSeconds: 180000,
		PeriodStart:        time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	}
	return &runner.Result{
		RunID:    "run-1",
		Snapshot: snap,
		Plan:     plan,
		Estimate: billing.Estimate(*snap, plan),
		Evaluation: model.Evaluation{
			Mode:        model.ModeThresholds,
			ShouldAlert: true,
			CUBreached:  true,
			Triggers: []model.Trigger{{
				Metric:   model.MetricCompute,
				Observed: decimal.NewFromInt(50),
				Limit:    decimal.NewFromInt(49),
			}},
		},
		Sent: true,
	}
}

func setupServer(c server.Checker) *server.Server {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return server.NewServer(c, time.Second, logger)
}

func TestServer_Health(t *testing.T) {
	srv := setupServer(&fakeChecker{})

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	err := json.NewDecoder(w.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp["status"])
}

func TestServer_Usage(t *testing.T) {
	srv := setupServer(&fakeChecker{res: sampleResult(t)})

	req := httptest.NewRequest("GET", "/api/v1/usage", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp server.UsageResponse
	err := json.NewDecoder(w.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "proj-1", resp.ProjectID)
	assert.Equal(t, "launch", resp.Plan)
	require.NotNil(t, resp.PeriodStart)
	assert.Nil(t, resp.PeriodEnd)
	assert.Equal(t, "5.30", resp.Estimate.TotalCostUSD.StringFixed(2))
}

func TestServer_Check(t *testing.T) {
	srv := setupServer(&fakeChecker{res: sampleResult(t)})

	req := httptest.NewRequest("POST", "/api/v1/check", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp server.CheckResponse
	err := json.NewDecoder(w.Body).Decode(&resp)
	require.NoError(t, err)
	assert.True(t, resp.ShouldAlert)
	assert.True(t, resp.Sent)
	assert.Equal(t, []string{"compute_cu_hours>=49"}, resp.Triggers)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Empty(t, resp.Error)
}

func TestServer_CheckRequiresPost(t *testing.T) {
	srv := setupServer(&fakeChecker{res: sampleResult(t)})

	req := httptest.NewRequest("GET", "/api/v1/check", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_CheckErrors(t *testing.T) {
	tests := []struct {
		name   string
		res    bool
		err    error
		status int
	}{
		{"configuration", false, billing.ErrNoThresholds, http.StatusBadRequest},
		{"fetch", false, fmt.Errorf("project p: %w", &neon.FetchError{Status: 401}), http.StatusBadGateway},
		{"notify after evaluation", true, &alerts.NotifyError{Target: alerts.TargetSlack, Status: 500}, http.StatusBadGateway},
		{"timeout", false, context.DeadlineExceeded, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeChecker{err: tt.err}
			if tt.res {
				c.res = sampleResult(t)
				c.res.Sent = false
			}
			srv := setupServer(c)

			req := httptest.NewRequest("POST", "/api/v1/check", nil)
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)

			var resp map[string]any
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.NotEmpty(t, resp["error"])
			if tt.res {
				assert.Equal(t, true, resp["should_alert"])
				assert.Equal(t, false, resp["sent"])
			}
		})
	}
}
