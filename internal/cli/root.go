package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/neon-billing-alerts/internal/config"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/alerts"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/billing"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/neon"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/runner"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	cfgFile     string
	projectFlag string
	modeFlag    string
	planFlag    string
)

var rootCmd = &cobra.Command{
	Use:   "neon-alerts",
	Short: "Neon billing alerts - usage cost estimates delivered to Slack or Discord",
	Long: `neon-alerts reads the current billing period usage of a Neon project,
estimates its cost from the plan's list prices, compares it against the
configured thresholds and posts a message to a Slack or Discord webhook.

Run without a subcommand to perform one check.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCheck,
}

// Execute runs the CLI and exits with a code describing the failure class.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./neon-alerts.yaml or ~/.neon-alerts/neon-alerts.yaml)")
	rootCmd.PersistentFlags().StringVar(&projectFlag, "project", "", "Neon project id (overrides NEON_PROJECT_ID)")
	rootCmd.PersistentFlags().StringVar(&planFlag, "plan", "", "pricing plan (overrides the plan reported by Neon)")
	rootCmd.Flags().StringVar(&modeFlag, "mode", "", "alert mode: always or thresholds (overrides ALERT_MODE)")
	rootCmd.Flags().Bool("dry-run", false, "evaluate and print the message without sending it")
}

// loadConfig loads the configuration and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, billing.NewConfigurationError("", "%v", err)
	}
	if projectFlag != "" {
		cfg.Neon.ProjectID = projectFlag
	}
	if modeFlag != "" {
		cfg.Alerts.Mode = modeFlag
	}
	if planFlag != "" {
		cfg.Neon.Plan = planFlag
	}
	return cfg, nil
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initFetcher creates a Neon API client from config.
func initFetcher(cfg *config.Config) (*neon.Client, error) {
	source, err := neon.ParseSource(cfg.Neon.Source)
	if err != nil {
		return nil, err
	}
	return neon.NewClient(cfg.Neon.APIKey,
		neon.WithBaseURL(cfg.Neon.APIURL),
		neon.WithSource(source),
		neon.WithTimeout(cfg.Neon.Timeout),
		neon.WithUserAgent("neon-billing-alerts/"+Version),
	), nil
}

// initNotifier creates the webhook notifier, or nil when no webhook is set.
func initNotifier(cfg *config.Config) (alerts.Notifier, error) {
	if cfg.Webhook.URL == "" {
		return nil, nil
	}
	target, err := alerts.ResolveTarget(cfg.Webhook.Provider, cfg.Webhook.URL)
	if err != nil {
		return nil, err
	}
	return alerts.NewNotifier(target, cfg.Webhook.URL, cfg.Webhook.Secret)
}

// runnerOptions converts validated config into runner options.
func runnerOptions(cfg *config.Config, dryRun bool) (runner.Options, error) {
	opts := runner.Options{
		ProjectID: cfg.Neon.ProjectID,
		Plan:      cfg.Neon.Plan,
		DryRun:    dryRun,
	}
	mode, err := cfg.Mode()
	if err != nil {
		return opts, err
	}
	th, err := cfg.Thresholds()
	if err != nil {
		return opts, err
	}
	opts.Mode = mode
	opts.Thresholds = th
	return opts, nil
}
