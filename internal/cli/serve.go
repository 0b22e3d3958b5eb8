package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/neon-billing-alerts/internal/server"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/alerts"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/runner"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve an HTTP endpoint that triggers billing checks",
	Long: `Start an HTTP server for schedulers that trigger work over HTTP.

  GET  /healthz        liveness
  GET  /api/v1/usage   current usage and estimated cost
  POST /api/v1/check   run one billing check and notify when due`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "listen address (overrides server.listen)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Listen = listen
	}

	logger := newLogger(cfg)

	fetcher, err := initFetcher(cfg)
	if err != nil {
		return err
	}
	notifier, err := initNotifier(cfg)
	if err != nil {
		return err
	}
	opts, err := runnerOptions(cfg, false)
	if err != nil {
		return err
	}

	checker := &perRequest{fetcher: fetcher, notifier: notifier, opts: opts, logger: logger}
	apiServer := server.NewServer(checker, cfg.Server.WriteTimeout, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "listen", cfg.Server.Listen, "project", cfg.Neon.ProjectID)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-cmd.Context().Done():
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

// perRequest builds a fresh runner per request so every check gets its own
// run id.
type perRequest struct {
	fetcher  runner.Fetcher
	notifier alerts.Notifier
	opts     runner.Options
	logger   *slog.Logger
}

func (p *perRequest) Run(ctx context.Context) (*runner.Result, error) {
	return runner.New(p.fetcher, p.notifier, nil, p.opts, p.logger).Run(ctx)
}

func (p *perRequest) Usage(ctx context.Context) (*runner.Result, error) {
	return runner.New(p.fetcher, p.notifier, nil, p.opts, p.logger).Usage(ctx)
}
