package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/alerts"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/billing"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/model"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/pricing"
)

// Fetcher retrieves current-period usage for a project.
type Fetcher interface {
	FetchUsage(ctx context.Context, projectID string) (*model.UsageSnapshot, error)
}

// Options configure a single check.
type Options struct {
	ProjectID  string
	Mode       model.AlertMode
	Thresholds model.Thresholds
	// Plan overrides the plan reported by the API when set.
	Plan   string
	DryRun bool
	// RunID tags every log line of the run. Generated when empty.
	RunID string
}

// Result is everything a run computed.
type Result struct {
	RunID        string
	Snapshot     *model.UsageSnapshot
	Plan         pricing.Plan
	PlanFallback bool
	Estimate     model.Estimate
	Evaluation   model.Evaluation
	Message      alerts.Message
	Sent         bool
}

// Runner executes fetch, estimate, evaluate, format and notify in order.
type Runner struct {
	fetcher  Fetcher
	notifier alerts.Notifier
	catalog  *pricing.Catalog
	opts     Options
	logger   *slog.Logger
}

// New creates a runner. A nil catalog selects the embedded one; a nil
// notifier is only valid for dry runs and usage reports.
func New(fetcher Fetcher, notifier alerts.Notifier, catalog *pricing.Catalog, opts Options, logger *slog.Logger) *Runner {
	if catalog == nil {
		catalog = pricing.Builtin()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		fetcher:  fetcher,
		notifier: notifier,
		catalog:  catalog,
		opts:     opts,
		logger:   logger.With("run_id", opts.RunID),
	}
}

// Run performs one billing check. Configuration problems are reported
// before any network call. A run where nothing breached is a success with
// Sent false.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := billing.Validate(r.opts.Thresholds, r.opts.Mode); err != nil {
		return nil, err
	}
	if r.notifier == nil && !r.opts.DryRun {
		return nil, billing.NewConfigurationError("webhook_url", "no notifier configured")
	}

	r.logger.Info("starting billing check",
		"project", r.opts.ProjectID,
		"mode", r.opts.Mode,
		"dry_run", r.opts.DryRun,
		thresholdAttrs(r.opts.Thresholds),
	)

	res, err := r.estimate(ctx)
	if err != nil {
		return nil, err
	}

	ev, err := billing.Evaluate(res.Estimate, r.opts.Thresholds, r.opts.Mode)
	if err != nil {
		return nil, err
	}
	res.Evaluation = ev

	triggers := make([]string, 0, len(ev.Triggers))
	for _, tr := range ev.Triggers {
		triggers = append(triggers, tr.String())
	}
	r.logger.Info("thresholds evaluated",
		"should_alert", ev.ShouldAlert,
		"breached", ev.Breached(),
		"triggers", triggers,
	)

	if !ev.ShouldAlert {
		r.logger.Info("no thresholds breached, skipping notification")
		return res, nil
	}

	res.Message = alerts.Format(res.Estimate, ev, r.opts.ProjectID)
	res.Message.RunID = res.RunID
	res.Message.Period = alerts.FormatPeriod(res.Snapshot.PeriodStart, res.Snapshot.PeriodEnd)

	if r.opts.DryRun {
		r.logger.Info("dry run, notification not sent", "title", res.Message.Title)
		return res, nil
	}

	if err := r.notifier.Send(ctx, res.Message); err != nil {
		r.logger.Error("send alert failed", "notifier", r.notifier.Name(), "error", err)
		return res, fmt.Errorf("project %s: %w", r.opts.ProjectID, err)
	}
	res.Sent = true
	r.logger.Info("alert sent", "notifier", r.notifier.Name(), "tone", res.Message.Tone)

	return res, nil
}

// Usage fetches and prices current usage without evaluating thresholds or
// notifying.
func (r *Runner) Usage(ctx context.Context) (*Result, error) {
	return r.estimate(ctx)
}

func (r *Runner) estimate(ctx context.Context) (*Result, error) {
	if r.opts.ProjectID == "" {
		return nil, billing.NewConfigurationError("neon_project_id", "project id is required")
	}

	snap, err := r.fetcher.FetchUsage(ctx, r.opts.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", r.opts.ProjectID, err)
	}

	plan, known := r.catalog.Resolve(r.opts.Plan, snap.Plan)
	if !known {
		r.logger.Warn("unknown plan, using default pricing",
			"reported", snap.Plan,
			"override", r.opts.Plan,
			"plan", plan.Name,
		)
	}

	est := billing.Estimate(*snap, plan)
	r.logger.Info("usage estimated",
		"plan", est.Plan,
		"records", snap.Records,
		slog.Group("usage",
			"compute_cu_hours", est.ComputeCUHours.String(),
			"storage_gb_month", est.StorageGBMonth.String(),
			"egress_gb", est.EgressGB.String(),
		),
		slog.Group("cost",
			"compute", est.ComputeCost.String(),
			"storage", est.StorageCost.String(),
			"egress", est.EgressCost.String(),
			"total", est.TotalCostUSD.String(),
		),
	)

	return &Result{
		RunID:        r.opts.RunID,
		Snapshot:     snap,
		Plan:         plan,
		PlanFallback: !known,
		Estimate:     est,
	}, nil
}

func thresholdAttrs(th model.Thresholds) slog.Attr {
	var attrs []any
	add := func(key string, v decimal.NullDecimal) {
		if v.Valid {
			attrs = append(attrs, key, v.Decimal.String())
		}
	}
	add("max_spend_usd", th.MaxSpendUSD)
	add("max_cu_usage", th.MaxCUUsage)
	add("max_storage_gb_month", th.MaxStorageGBMonth)
	add("max_egress_gb", th.MaxEgressGB)
	return slog.Group("thresholds", attrs...)
}
