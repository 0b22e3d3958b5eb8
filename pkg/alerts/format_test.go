package alerts_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/alerts"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testEstimate() model.Estimate {
	return model.Estimate{
		Plan:           "launch",
		ComputeCUHours: d("50"),
		StorageGBMonth: d("12.5"),
		EgressGB:       d("80"),
		ComputeCost:    d("5.3"),
		StorageCost:    d("4.38"),
		EgressCost:     d("0"),
		TotalCostUSD:   d("9.68"),
	}
}

func breachEvaluation() model.Evaluation {
	return model.Evaluation{
		Mode:        model.ModeThresholds,
		ShouldAlert: true,
		CUBreached:  true,
		Triggers: []model.Trigger{
			{Metric: model.MetricCompute, Observed: d("50"), Limit: d("49")},
		},
	}
}

func TestFormat_Breach(t *testing.T) {
	msg := alerts.Format(testEstimate(), breachEvaluation(), "proj-123")

	assert.Equal(t, alerts.ToneAlert, msg.Tone)
	assert.Equal(t, "Neon billing alert: proj-123", msg.Title)
	assert.Equal(t, "proj-123", msg.ProjectID)
	assert.Equal(t, "launch", msg.Plan)
	assert.Equal(t, "$9.68", msg.Total)
	assert.Equal(t, "Trigger: compute_cu_hours>=49", msg.Summary)
	require.Len(t, msg.Breaches, 1)
	assert.Equal(t, "Compute 50.00 CU-h reached limit 49 CU-h", msg.Breaches[0])

	require.Len(t, msg.Rows, 3)
	assert.Equal(t, "50.00", msg.Rows[0].Amount)
	assert.Equal(t, "$5.30", msg.Rows[0].Cost)
	assert.True(t, msg.Rows[0].Breached)
	assert.Equal(t, "12.50", msg.Rows[1].Amount)
	assert.False(t, msg.Rows[1].Breached)
	assert.Equal(t, "$0.00", msg.Rows[2].Cost)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestFormat_AlwaysWithoutBreach(t *testing.T) {
	ev := model.Evaluation{Mode: model.ModeAlways, ShouldAlert: true}
	msg := alerts.Format(model.Estimate{Plan: "scale"}, ev, "proj-9")

	assert.Equal(t, alerts.ToneReport, msg.Tone)
	assert.Equal(t, "Neon usage report: proj-9", msg.Title)
	assert.Equal(t, "Trigger: alert_mode=always, no thresholds breached", msg.Summary)
	assert.Empty(t, msg.Breaches)
	require.Len(t, msg.Rows, 3, "all metrics are always shown")
	assert.Equal(t, "0.00", msg.Rows[0].Amount)
	assert.Equal(t, "$0.00", msg.Total)
}

func TestFormat_SpendBreachWording(t *testing.T) {
	ev := model.Evaluation{
		Mode:          model.ModeThresholds,
		ShouldAlert:   true,
		SpendBreached: true,
		Triggers:      []model.Trigger{{Metric: model.MetricSpend, Observed: d("9.68"), Limit: d("5")}},
	}
	msg := alerts.Format(testEstimate(), ev, "p")
	assert.Equal(t, []string{"Estimated spend $9.68 reached limit $5.00"}, msg.Breaches)
}

func TestMessage_Table(t *testing.T) {
	msg := alerts.Format(testEstimate(), breachEvaluation(), "proj-123")
	table := msg.Table()

	assert.True(t, strings.HasPrefix(table, "```\n"))
	assert.True(t, strings.HasSuffix(table, "```"))
	assert.Contains(t, table, "| Compute CU-h |    50.00 |    $5.30 |!")
	assert.Contains(t, table, "| Storage GB-m |    12.50 |    $4.38 | ")
	assert.Contains(t, table, "| Egress GB    |    80.00 |    $0.00 | ")
	assert.Contains(t, table, "| Total        |        - |    $9.68 |")
}

func TestMessage_Text(t *testing.T) {
	msg := alerts.Format(testEstimate(), breachEvaluation(), "proj-123")
	msg.Period = "2026-10-01 to now"

	text := msg.Text()
	lines := strings.Split(text, "\n")
	assert.Equal(t, "Neon billing alert: proj-123", lines[0])
	assert.Equal(t, "- Period: 2026-10-01 to now", lines[1])
	assert.Equal(t, "- Plan: launch", lines[2])
	assert.Contains(t, text, "- Compute 50.00 CU-h reached limit 49 CU-h")
}

func TestFormatPeriod(t *testing.T) {
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "2026-10-01 to 2026-11-01", alerts.FormatPeriod(start, end))
	assert.Equal(t, "2026-10-01 to now", alerts.FormatPeriod(start, time.Time{}))
	assert.Equal(t, "? to 2026-11-01", alerts.FormatPeriod(time.Time{}, end))
	assert.Empty(t, alerts.FormatPeriod(time.Time{}, time.Time{}))
}
