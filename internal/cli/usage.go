package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/alerts"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/runner"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show current period usage and estimated cost",
	Long: `Fetch the project's usage for the current billing period and print the
estimated cost per metric. Thresholds are not evaluated and nothing is sent.`,
	RunE: runUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		printFailure(out, err)
		return err
	}
	if err := cfg.ValidateUsage(); err != nil {
		printFailure(out, err)
		return err
	}

	fetcher, err := initFetcher(cfg)
	if err != nil {
		printFailure(out, err)
		return err
	}

	opts := runner.Options{ProjectID: cfg.Neon.ProjectID, Plan: cfg.Neon.Plan}
	res, err := runner.New(fetcher, nil, nil, opts, newLogger(cfg)).Usage(cmd.Context())
	if err != nil {
		printFailure(out, err)
		return err
	}

	renderUsage(out, res)
	return nil
}

func renderUsage(w io.Writer, res *runner.Result) {
	est := res.Estimate
	plan := res.Plan

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Neon usage: %s", res.Snapshot.ProjectID)
	tw.AppendHeader(table.Row{"Metric", "Amount", "Unit", "Unit Price", "Free", "Cost"})
	tw.SetStyle(table.StyleRounded)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})

	tw.AppendRows([]table.Row{
		{"Compute", est.ComputeCUHours.StringFixed(2), "CU-h", unitPrice(plan.ComputeCUHour), plan.FreeComputeCUHour.String(), usd(est.ComputeCost)},
		{"Storage", est.StorageGBMonth.StringFixed(2), "GB-month", unitPrice(plan.StorageGBMonth), plan.FreeStorageGBMonth.String(), usd(est.StorageCost)},
		{"Egress", est.EgressGB.StringFixed(2), "GB", unitPrice(plan.EgressGB), plan.FreeEgressGB.String(), usd(est.EgressCost)},
	})
	tw.AppendFooter(table.Row{"Total", "", "", "", "", usd(est.TotalCostUSD)})

	caption := fmt.Sprintf("plan %s", plan.Name)
	if res.PlanFallback {
		caption = fmt.Sprintf("plan %q unknown, priced as %s", res.Snapshot.Plan, plan.Name)
	}
	if period := alerts.FormatPeriod(res.Snapshot.PeriodStart, res.Snapshot.PeriodEnd); period != "" {
		caption += ", period " + period
	}
	tw.SetCaption(caption)

	tw.Render()
}

func usd(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func unitPrice(d decimal.Decimal) string {
	return "$" + d.String()
}
