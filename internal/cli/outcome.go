package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/alerts"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/billing"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/neon"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/runner"
)

// Process exit codes.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfiguration = 2
	ExitFetch         = 3
	ExitNotify        = 4
)

var (
	okColor   = color.New(color.FgGreen, color.Bold).SprintFunc()
	warnColor = color.New(color.FgYellow, color.Bold).SprintFunc()
	failColor = color.New(color.FgRed, color.Bold).SprintFunc()
)

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	var (
		cfgErr    *billing.ConfigurationError
		fetchErr  *neon.FetchError
		notifyErr *alerts.NotifyError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &cfgErr):
		return ExitConfiguration
	case errors.As(err, &fetchErr):
		return ExitFetch
	case errors.As(err, &notifyErr):
		return ExitNotify
	default:
		return ExitFailure
	}
}

func printResult(w io.Writer, res *runner.Result) {
	total := "$" + res.Estimate.TotalCostUSD.StringFixed(2)
	switch {
	case res.Sent:
		fmt.Fprintf(w, "%s %s sent for %s (estimated %s)\n",
			okColor("OK"), res.Message.Tone, res.Snapshot.ProjectID, total)
	case res.Evaluation.ShouldAlert:
		fmt.Fprintf(w, "%s dry run, %s not sent for %s (estimated %s)\n",
			warnColor("SKIP"), res.Message.Tone, res.Snapshot.ProjectID, total)
	default:
		fmt.Fprintf(w, "%s no thresholds breached for %s (estimated %s)\n",
			okColor("OK"), res.Snapshot.ProjectID, total)
	}
}

func printFailure(w io.Writer, err error) {
	var label string
	switch ExitCode(err) {
	case ExitConfiguration:
		label = "configuration error"
	case ExitFetch:
		label = "usage fetch failed"
	case ExitNotify:
		label = "alert delivery failed"
	default:
		label = "check failed"
	}
	fmt.Fprintf(w, "%s %s\n", failColor("FAIL"), label)
}
