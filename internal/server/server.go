package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/alerts"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/billing"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/model"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/neon"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/runner"
)

// Checker runs billing checks. *runner.Runner satisfies it.
type Checker interface {
	Run(ctx context.Context) (*runner.Result, error)
	Usage(ctx context.Context) (*runner.Result, error)
}

// Server exposes health, usage and check endpoints so a scheduler can
// trigger checks over HTTP.
type Server struct {
	checker Checker
	timeout time.Duration
	mux     *http.ServeMux
	logger  *slog.Logger
}

// NewServer creates an API server. Each request gets at most timeout to
// complete its upstream calls.
func NewServer(c Checker, timeout time.Duration, logger *slog.Logger) *Server {
	if timeout <= 0 {
		timeout = time.Minute
	}
	s := &Server{
		checker: c,
		timeout: timeout,
		mux:     http.NewServeMux(),
		logger:  logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/usage", s.handleUsage)
	s.mux.HandleFunc("POST /api/v1/check", s.handleCheck)
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// UsageResponse is the body of GET /api/v1/usage.
type UsageResponse struct {
	RunID        string         `json:"run_id"`
	ProjectID    string         `json:"project_id"`
	Plan         string         `json:"plan"`
	PlanFallback bool           `json:"plan_fallback"`
	PeriodStart  *time.Time     `json:"period_start,omitempty"`
	PeriodEnd    *time.Time     `json:"period_end,omitempty"`
	Estimate     model.Estimate `json:"estimate"`
}

// CheckResponse is the body of POST /api/v1/check.
type CheckResponse struct {
	UsageResponse
	ShouldAlert bool     `json:"should_alert"`
	Triggers    []string `json:"triggers"`
	Sent        bool     `json:"sent"`
	Error       string   `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	res, err := s.checker.Usage(ctx)
	if err != nil {
		s.logger.Error("fetch usage", "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, usageResponse(res))
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	res, err := s.checker.Run(ctx)
	if err != nil && res == nil {
		s.logger.Error("billing check", "error", err)
		writeError(w, err)
		return
	}

	resp := CheckResponse{
		UsageResponse: usageResponse(res),
		ShouldAlert:   res.Evaluation.ShouldAlert,
		Triggers:      []string{},
		Sent:          res.Sent,
	}
	for _, tr := range res.Evaluation.Triggers {
		resp.Triggers = append(resp.Triggers, tr.String())
	}

	status := http.StatusOK
	if err != nil {
		s.logger.Error("billing check", "error", err)
		resp.Error = err.Error()
		status = statusFor(err)
	}
	writeJSON(w, status, resp)
}

func usageResponse(res *runner.Result) UsageResponse {
	resp := UsageResponse{
		RunID:        res.RunID,
		Plan:         res.Plan.Name,
		PlanFallback: res.PlanFallback,
		Estimate:     res.Estimate,
	}
	if res.Snapshot != nil {
		resp.ProjectID = res.Snapshot.ProjectID
		if !res.Snapshot.PeriodStart.IsZero() {
			resp.PeriodStart = &res.Snapshot.PeriodStart
		}
		if !res.Snapshot.PeriodEnd.IsZero() {
			resp.PeriodEnd = &res.Snapshot.PeriodEnd
		}
	}
	return resp
}

// statusFor maps failures to HTTP status codes. Upstream failures are
// reported as 502 since the server itself is healthy.
func statusFor(err error) int {
	var (
		cfgErr    *billing.ConfigurationError
		fetchErr  *neon.FetchError
		notifyErr *alerts.NotifyError
	)
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest
	case errors.As(err, &fetchErr), errors.As(err, &notifyErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
