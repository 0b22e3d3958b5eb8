package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/runner"
)

func runCheck(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg, err := loadConfig()
	if err != nil {
		printFailure(out, err)
		return err
	}

	validate := cfg.Validate
	if dryRun {
		validate = func() error {
			if err := cfg.ValidateUsage(); err != nil {
				return err
			}
			return cfg.ValidateAlerts()
		}
	}
	if err := validate(); err != nil {
		printFailure(out, err)
		return err
	}

	logger := newLogger(cfg)

	fetcher, err := initFetcher(cfg)
	if err != nil {
		printFailure(out, err)
		return err
	}
	notifier, err := initNotifier(cfg)
	if err != nil {
		printFailure(out, err)
		return err
	}
	opts, err := runnerOptions(cfg, dryRun)
	if err != nil {
		printFailure(out, err)
		return err
	}

	res, err := runner.New(fetcher, notifier, nil, opts, logger).Run(cmd.Context())
	if err != nil {
		printFailure(out, err)
		return err
	}

	if dryRun && res.Evaluation.ShouldAlert {
		fmt.Fprintln(out, res.Message.Text())
	}
	printResult(out, res)
	return nil
}
