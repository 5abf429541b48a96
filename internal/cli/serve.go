package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/epmlabs/planning-agent/internal/server"
)

// cleanupInterval is how often the retention pruner runs while serving.
const cleanupInterval = 6 * time.Hour

// NewServeCmd creates the 'serve' command for running the feedback API.
func NewServeCmd() *cobra.Command {
	var configPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the feedback and recommendation API",
		Long: `Start the planning-agent REST API.

Endpoints:
  POST /api/feedback         - attach a user rating to an execution
  GET  /api/executions       - list recent executions for rating
  GET  /api/recommendations  - ranked tool recommendations for a context
  GET  /api/metrics          - per-tool performance aggregates
  GET  /healthz              - health check`,
		Example: `  planning-agent serve
  planning-agent serve --config ./planning-agent.yaml --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, verbose)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

// runServe starts the REST server with signal handling and graceful
// shutdown, plus the periodic retention pruner.
func runServe(configPath string, verbose bool) error {
	a, err := newApp(configPath, verbose)
	if err != nil {
		return err
	}
	defer a.close()

	srv := server.New(a.cfg.Server, a.coordinator, a.engine, a.log.Named("server"))

	rootCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	if a.cfg.Retention.Days > 0 {
		go runCleanup(rootCtx, a, time.Duration(a.cfg.Retention.Days)*24*time.Hour)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case sig := <-sigChan:
		a.log.Info("received signal, shutting down", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.log.Error("shutdown error", zap.Error(err))
			return err
		}
		return nil

	case err := <-errChan:
		return err
	}
}

// runCleanup prunes old executions on a fixed interval until ctx is done.
func runCleanup(ctx context.Context, a *app, retention time.Duration) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := a.store.Cleanup(ctx, retention)
			if err != nil {
				a.log.Warn("retention cleanup failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				a.log.Info("pruned old executions", zap.Int64("removed", removed))
			}
		}
	}
}
