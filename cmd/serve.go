package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"stream-cutter/infrastructure/config"
	"stream-cutter/infrastructure/logging"
	"stream-cutter/infrastructure/metrics"
	"stream-cutter/infrastructure/web"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP cut service",
	Long: `Run the HTTP API:

  POST /api/cut      multipart form with file, startTime and endTime (seconds)
  POST /api/cleanup  reclaim stale temp files now
  GET  /healthz      liveness check

Prometheus metrics are served on the configured metrics address.
Stale temp files are reclaimed at startup and then on the cleanup interval.

Example:
  stream-cutter serve --config config/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return RunServe(ctx, cfg, logging.L())
}

// RunServe serves until ctx is cancelled, then shuts down gracefully
func RunServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	stack, err := newCutStack(cfg)
	if err != nil {
		return err
	}
	if err := stack.namespace.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	for _, w := range cfg.Warnings() {
		logger.Warn("configuration warning", zap.String("detail", w))
	}

	// Cuts fail with a spawn error until this is fixed, but the service still starts
	if err := stack.cutter.VerifyInstalled(ctx); err != nil {
		logger.Warn("ffmpeg is not available", zap.String("binary", stack.cutter.Path()), zap.Error(err))
	}

	// Clear leftovers from a previous run before accepting requests
	if _, err := stack.janitor.Sweep(ctx); err != nil {
		logger.Warn("startup sweep failed", zap.Error(err))
	}
	stack.janitor.Start(ctx)
	defer stack.janitor.Stop()

	srv := web.NewServer(stack.service, stack.janitor, stack.namespace, cfg.MaxBodyBytes())
	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Server.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		defer metricsServer.Close()
		go func() {
			logger.Info("metrics server listening", zap.String("addr", cfg.Server.MetricsAddr))
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", cfg.Server.ListenAddr),
			zap.String("temp_dir", stack.namespace.Dir()),
		)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
