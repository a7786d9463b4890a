package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/sourceproof/internal/config"
	"github.com/pendergraft/sourceproof/internal/ledger"
	"github.com/pendergraft/sourceproof/internal/observability/metrics"
	"github.com/pendergraft/sourceproof/internal/server"
	"github.com/pendergraft/sourceproof/internal/storage"
)

func createServeCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP verification service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(version)
		},
	}
}

func runServe(version string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg)
	logger.Info("starting sourceproof", "version", version)

	metrics.Init(cfg.Metrics.Enabled, "sourceproof")

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(context.Background()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	client, err := newLedgerClient(cfg)
	if err != nil {
		return fmt.Errorf("initializing ledger client: %w", err)
	}
	srv := server.New(cfg, store, client, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Metrics get their own listener so they stay off the public surface
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
			Handler: srv.MetricsHandler(),
		}
		go func() {
			logger.Info("metrics listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(ctx)
	}

	logger.Info("server stopped")
	return nil
}

func newLedgerClient(cfg *config.Config) (*ledger.Client, error) {
	opts := []ledger.Option{
		ledger.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Ledger.TimeoutSeconds) * time.Second,
		}),
	}
	if cfg.Ledger.RateLimitRPS > 0 {
		opts = append(opts, ledger.WithRateLimit(cfg.Ledger.RateLimitRPS, cfg.Ledger.RateLimitBurst))
	}
	return ledger.NewClient(cfg.Ledger.Endpoint, opts...)
}
