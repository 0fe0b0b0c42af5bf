package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/medallion/internal/config"
	"github.com/JonMunkholm/medallion/internal/logging"
	"github.com/JonMunkholm/medallion/internal/metrics"
	"github.com/JonMunkholm/medallion/internal/pipeline"
	"github.com/JonMunkholm/medallion/internal/tracing"
	"github.com/JonMunkholm/medallion/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"source", cfg.Pipeline.Source,
		"policy", cfg.Pipeline.Policy,
		"max_concurrent_runs", cfg.Server.MaxConcurrentRuns,
		"dry_run", cfg.Pipeline.DryRun,
	)

	reg := metrics.NewRegistry()

	shutdownTracing, err := tracing.Setup(context.Background(), cfg.Tracing)
	if err != nil {
		slog.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	wiring, err := pipeline.Build(context.Background(), cfg, reg)
	if err != nil {
		slog.Error("failed to set up pipeline", "error", err)
		os.Exit(1)
	}
	defer wiring.Close()

	limiter := pipeline.NewRunLimiter(cfg.Server.MaxConcurrentRuns, cfg.Server.MaxWaitTime)
	wiring.Runner.Limiter = limiter

	opts := web.Options{
		RunTimeout:     cfg.Pipeline.RunTimeout,
		RequestTimeout: cfg.Server.RequestTimeout,
		APIKeys:        cfg.Server.APIKeys,
		TrustedProxies: cfg.Server.TrustedProxies,
		Metrics:        reg.Handler(),
		Health:         wiring.Health,
	}
	if wiring.Warehouse != nil {
		opts.Rejections = wiring.Warehouse
	}
	server := web.NewServer(wiring.Runner, opts)
	if len(cfg.Server.APIKeys) == 0 {
		slog.Warn("SERVER_API_KEYS is empty, POST /api/runs is unauthenticated")
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active runs to complete (with timeout)
		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for runs to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("runs did not complete in time", "error", err)
			} else {
				slog.Info("all runs completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(cfg.Server.Addr(), cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
