package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UsageSnapshot holds raw consumption for the current billing period.
// Zero values mean "nothing reported", which is treated as nothing used.
type UsageSnapshot struct {
	ProjectID          string    `json:"project_id"`
	Plan               string    `json:"plan,omitempty"`
	ComputeTimeSeconds float64   `json:"compute_time_seconds"`
	StorageBytesHour   float64   `json:"data_storage_bytes_hour"`
	EgressBytes        float64   `json:"data_transfer_bytes"`
	PeriodStart        time.Time `json:"period_start,omitempty"`
	PeriodEnd          time.Time `json:"period_end,omitempty"`
	Records            int       `json:"records"`
}

// AlertMode controls when an alert is sent.
type AlertMode string

const (
	ModeAlways     AlertMode = "always"     // Alert on every run
	ModeThresholds AlertMode = "thresholds" // Alert only when a threshold is breached
)

// ParseAlertMode normalizes a user supplied mode. Empty input yields ModeThresholds.
func ParseAlertMode(s string) (AlertMode, error) {
	switch AlertMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeThresholds:
		return ModeThresholds, nil
	case ModeAlways:
		return ModeAlways, nil
	default:
		return "", fmt.Errorf("alert mode must be %q or %q, got %q", ModeAlways, ModeThresholds, s)
	}
}

// Thresholds are optional ceilings. An invalid NullDecimal means unset.
type Thresholds struct {
	MaxSpendUSD       decimal.NullDecimal `json:"max_spend_usd"`
	MaxCUUsage        decimal.NullDecimal `json:"max_cu_usage"`
	MaxStorageGBMonth decimal.NullDecimal `json:"max_storage_gb_month"`
	MaxEgressGB       decimal.NullDecimal `json:"max_egress_gb"`
}

// Any reports whether at least one threshold is set.
func (t Thresholds) Any() bool {
	return t.MaxSpendUSD.Valid || t.MaxCUUsage.Valid || t.MaxStorageGBMonth.Valid || t.MaxEgressGB.Valid
}

// Estimate is the human-scaled usage and cost derived from a snapshot.
// All values are rounded to two decimal places.
type Estimate struct {
	Plan           string          `json:"plan"`
	ComputeCUHours decimal.Decimal `json:"compute_cu_hours"`
	StorageGBMonth decimal.Decimal `json:"storage_gb_month"`
	EgressGB       decimal.Decimal `json:"egress_gb"`
	ComputeCost    decimal.Decimal `json:"compute_cost_usd"`
	StorageCost    decimal.Decimal `json:"storage_cost_usd"`
	EgressCost     decimal.Decimal `json:"egress_cost_usd"`
	TotalCostUSD   decimal.Decimal `json:"total_cost_usd"`
}

// Metric identifies a thresholded quantity.
type Metric string

const (
	MetricSpend   Metric = "total_cost"
	MetricCompute Metric = "compute_cu_hours"
	MetricStorage Metric = "storage_gb_month"
	MetricEgress  Metric = "egress_gb"
)

// Trigger records a single breached threshold.
type Trigger struct {
	Metric   Metric          `json:"metric"`
	Observed decimal.Decimal `json:"observed"`
	Limit    decimal.Decimal `json:"limit"`
}

func (t Trigger) String() string {
	return fmt.Sprintf("%s>=%s", t.Metric, t.Limit.String())
}

// Evaluation is the outcome of comparing an estimate against thresholds.
type Evaluation struct {
	Mode            AlertMode `json:"mode"`
	ShouldAlert     bool      `json:"should_alert"`
	SpendBreached   bool      `json:"spend_breached"`
	CUBreached      bool      `json:"cu_breached"`
	StorageBreached bool      `json:"storage_breached"`
	EgressBreached  bool      `json:"egress_breached"`
	Triggers        []Trigger `json:"triggers,omitempty"`
}

// Breached reports whether any threshold was met or exceeded.
func (e Evaluation) Breached() bool {
	return len(e.Triggers) > 0
}

// PeriodBounds returns the calendar month containing now, in UTC.
// Used when the API omits period timestamps.
func PeriodBounds(now time.Time) (start, end time.Time) {
	now = now.UTC()
	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}
