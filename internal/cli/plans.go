package cli

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/pricing"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List the built-in pricing plans",
	Run: func(cmd *cobra.Command, _ []string) {
		renderPlans(cmd.OutOrStdout(), pricing.Builtin())
	},
}

func init() {
	rootCmd.AddCommand(plansCmd)
}

func renderPlans(w io.Writer, catalog *pricing.Catalog) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Neon pricing plans")
	tw.AppendHeader(table.Row{"Plan", "Compute $/CU-h", "Storage $/GB-month", "Egress $/GB", "Free Egress GB"})
	tw.SetStyle(table.StyleRounded)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})

	def := catalog.Default().Name
	for _, p := range catalog.Plans() {
		name := p.Name
		if name == def {
			name += " (default)"
		}
		tw.AppendRow(table.Row{
			name,
			unitPrice(p.ComputeCUHour),
			unitPrice(p.StorageGBMonth),
			unitPrice(p.EgressGB),
			p.FreeEgressGB.String(),
		})
	}
	tw.SetCaption("prices reviewed %s", catalog.Updated())

	tw.Render()
}
