package billing

import (
	"github.com/shopspring/decimal"

	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/model"
)

// Evaluate compares an estimate against the configured thresholds.
//
// In always mode the alert fires unconditionally and breach flags are
// informational. In thresholds mode at least one threshold must be set and
// the alert fires when any set threshold is met or exceeded.
func Evaluate(est model.Estimate, th model.Thresholds, mode model.AlertMode) (model.Evaluation, error) {
	if err := Validate(th, mode); err != nil {
		return model.Evaluation{}, err
	}

	ev := model.Evaluation{Mode: mode}
	ev.SpendBreached = check(&ev, model.MetricSpend, est.TotalCostUSD, th.MaxSpendUSD)
	ev.CUBreached = check(&ev, model.MetricCompute, est.ComputeCUHours, th.MaxCUUsage)
	ev.StorageBreached = check(&ev, model.MetricStorage, est.StorageGBMonth, th.MaxStorageGBMonth)
	ev.EgressBreached = check(&ev, model.MetricEgress, est.EgressGB, th.MaxEgressGB)

	ev.ShouldAlert = mode == model.ModeAlways || ev.Breached()
	return ev, nil
}

// Validate reports whether mode and thresholds can be evaluated, without
// needing any usage.
func Validate(th model.Thresholds, mode model.AlertMode) error {
	switch mode {
	case model.ModeAlways, model.ModeThresholds:
	default:
		return NewConfigurationError("alert_mode", "unknown mode %q", mode)
	}
	if mode == model.ModeThresholds && !th.Any() {
		return ErrNoThresholds
	}
	limits := []struct {
		field string
		value decimal.NullDecimal
	}{
		{"max_spend_usd", th.MaxSpendUSD},
		{"max_cu_usage", th.MaxCUUsage},
		{"max_storage_gb_month", th.MaxStorageGBMonth},
		{"max_egress_gb", th.MaxEgressGB},
	}
	for _, l := range limits {
		if l.value.Valid && l.value.Decimal.IsNegative() {
			return NewConfigurationError(l.field, "must not be negative, got %s", l.value.Decimal)
		}
	}
	return nil
}

// check is inclusive: reaching the limit exactly counts as a breach.
func check(ev *model.Evaluation, metric model.Metric, observed decimal.Decimal, limit decimal.NullDecimal) bool {
	if !limit.Valid || observed.LessThan(limit.Decimal) {
		return false
	}
	ev.Triggers = append(ev.Triggers, model.Trigger{
		Metric:   metric,
		Observed: observed,
		Limit:    limit.Decimal,
	})
	return true
}
