package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/model"
)

// Format builds the message for an evaluated estimate.
func Format(est model.Estimate, ev model.Evaluation, projectID string) Message {
	msg := Message{
		ProjectID: projectID,
		Plan:      est.Plan,
		Total:     money(est.TotalCostUSD),
		Timestamp: time.Now().UTC(),
		Rows: []Row{
			{Label: "Compute", Unit: "CU-h", Amount: est.ComputeCUHours.StringFixed(2), Cost: money(est.ComputeCost), Breached: ev.CUBreached},
			{Label: "Storage", Unit: "GB-month", Amount: est.StorageGBMonth.StringFixed(2), Cost: money(est.StorageCost), Breached: ev.StorageBreached},
			{Label: "Egress", Unit: "GB", Amount: est.EgressGB.StringFixed(2), Cost: money(est.EgressCost), Breached: ev.EgressBreached},
		},
	}

	if ev.Breached() {
		msg.Tone = ToneAlert
		msg.Title = "Neon billing alert: " + projectID
		triggers := make([]string, 0, len(ev.Triggers))
		for _, tr := range ev.Triggers {
			triggers = append(triggers, tr.String())
			msg.Breaches = append(msg.Breaches, describe(tr))
		}
		msg.Summary = "Trigger: " + strings.Join(triggers, ", ")
	} else {
		msg.Tone = ToneReport
		msg.Title = "Neon usage report: " + projectID
		msg.Summary = fmt.Sprintf("Trigger: alert_mode=%s, no thresholds breached", ev.Mode)
	}
	return msg
}

// FormatPeriod renders a billing window for display. Missing bounds are
// shown as "?" and an open end as "now".
func FormatPeriod(start, end time.Time) string {
	if start.IsZero() && end.IsZero() {
		return ""
	}
	from, to := "?", "now"
	if !start.IsZero() {
		from = start.Format("2006-01-02")
	}
	if !end.IsZero() {
		to = end.Format("2006-01-02")
	}
	return from + " to " + to
}

// Table renders the usage rows as a fixed-width code block.
func (m Message) Table() string {
	var b strings.Builder
	b.WriteString("```\n")
	b.WriteString("| Usage        |  Amount  |   Cost   |\n")
	b.WriteString("|--------------|----------|----------|\n")
	for _, r := range m.Rows {
		label := r.Label + " " + shortUnit(r.Unit)
		marker := " "
		if r.Breached {
			marker = "!"
		}
		fmt.Fprintf(&b, "| %-12s | %8s | %8s |%s\n", label, r.Amount, r.Cost, marker)
	}
	fmt.Fprintf(&b, "| %-12s | %8s | %8s |\n", "Total", "-", m.Total)
	b.WriteString("```")
	return b.String()
}

// Body renders everything below the title as markdown lines.
func (m Message) Body() string {
	var b strings.Builder
	if m.Period != "" {
		fmt.Fprintf(&b, "- Period: %s\n", m.Period)
	}
	fmt.Fprintf(&b, "- Plan: %s\n", m.Plan)
	fmt.Fprintf(&b, "- %s\n", m.Summary)
	for _, line := range m.Breaches {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	b.WriteString(m.Table())
	return b.String()
}

// Text is the plain rendering used by generic webhooks and the CLI.
func (m Message) Text() string {
	return m.Title + "\n" + m.Body()
}

func describe(tr model.Trigger) string {
	switch tr.Metric {
	case model.MetricSpend:
		return fmt.Sprintf("Estimated spend %s reached limit %s", money(tr.Observed), money(tr.Limit))
	case model.MetricCompute:
		return fmt.Sprintf("Compute %s CU-h reached limit %s CU-h", tr.Observed.StringFixed(2), tr.Limit.String())
	case model.MetricStorage:
		return fmt.Sprintf("Storage %s GB-month reached limit %s GB-month", tr.Observed.StringFixed(2), tr.Limit.String())
	case model.MetricEgress:
		return fmt.Sprintf("Egress %s GB reached limit %s GB", tr.Observed.StringFixed(2), tr.Limit.String())
	default:
		return tr.String()
	}
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func shortUnit(unit string) string {
	switch unit {
	case "GB-month":
		return "GB-m"
	default:
		return unit
	}
}
