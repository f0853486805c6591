// Package main is the entrypoint for the optimizer API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/demandcast/optimizer/internal/ai"
	"github.com/demandcast/optimizer/internal/api"
	"github.com/demandcast/optimizer/internal/api/handler"
	mw "github.com/demandcast/optimizer/internal/api/middleware"
	"github.com/demandcast/optimizer/internal/api/response"
	"github.com/demandcast/optimizer/internal/cache"
	"github.com/demandcast/optimizer/internal/config"
	"github.com/demandcast/optimizer/internal/forecast"
	"github.com/demandcast/optimizer/internal/optimize"
	"github.com/demandcast/optimizer/internal/store"

	// Register the AI provider constructors.
	_ "github.com/demandcast/optimizer/internal/ai/mock"
	_ "github.com/demandcast/optimizer/internal/ai/ollama"
	_ "github.com/demandcast/optimizer/internal/ai/openai"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"ai_provider", cfg.AI.Provider,
		"scheduler_concurrency", cfg.Scheduler.Concurrency,
		"env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create AI provider
	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name())

	// 6. Create store, registry, and the optimization core
	pgStore := store.NewPostgresStore(pool)
	registry := forecast.NewRegistry()
	factory := optimize.NewFactory(pgStore, registry)
	runner := optimize.NewRunner(pgStore, redisCache, registry, aiProvider, cfg.AI.InferenceTimeout)

	scheduler := optimize.NewScheduler(pgStore, runner, cfg.Scheduler.Concurrency, cfg.Scheduler.Interval)
	scheduler.Start(ctx)
	defer scheduler.Stop()
	slog.Info("scheduler started",
		"budget", cfg.Scheduler.Concurrency, "interval", cfg.Scheduler.Interval)

	// 7. Build router with dependencies
	deps := api.Dependencies{
		RateLimit: mw.NewRateLimit(redisCache, 60),

		HealthHandler:         healthHandler(pgStore, redisCache),
		CreateJobsHandler:     handler.NewCreateJobsHandler(factory, scheduler),
		JobsStatusHandler:     handler.NewJobsStatusHandler(pgStore),
		PollJobHandler:        handler.NewPollJobHandler(pgStore, redisCache),
		ResetJobsHandler:      handler.NewResetJobsHandler(pgStore),
		ClearCompletedHandler: handler.NewClearCompletedHandler(pgStore),
		BestResultsHandler:    handler.NewBestResultsHandler(pgStore, registry),
		ExportResultsHandler:  handler.NewExportResultsHandler(pgStore, registry),
		CancelHandler:         handler.NewCancelOptimizationHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
