// Package main implements the entry point for the linkhoard import worker,
// which drains staged bulk-import items into the bookmark pipeline while
// respecting downstream backpressure.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/jdalton/linkhoard/internal/config"
	"github.com/jdalton/linkhoard/internal/importer"
	"github.com/jdalton/linkhoard/internal/platform/bookmarkapi"
	"github.com/jdalton/linkhoard/internal/platform/logger"
	"github.com/jdalton/linkhoard/internal/platform/metrics"
	"github.com/jdalton/linkhoard/internal/platform/postgres"
)

const (
	dbConnectTimeout = 10 * time.Second
	shutdownTimeout  = 15 * time.Second
	statsSchedule    = "@every 1m"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Failed to start import worker: %v", err)
	}
}

// run wires configuration, logging, the database, the scheduler, and the
// HTTP surface together, then blocks until a shutdown signal arrives.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Worker configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"max_in_flight", cfg.Importer.MaxInFlight,
		"batch_size", cfg.Importer.BatchSize)

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	if err := runMigrations(context.Background(), db, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	importMetrics := metrics.New(registry)

	sessionStore := postgres.NewPostgresSessionStore(db, appLogger)
	itemStore := postgres.NewPostgresItemStore(db, appLogger)
	stores := importer.NewSQLStagingStores(db, sessionStore, itemStore)

	apiClient := bookmarkapi.NewClient(cfg.API, appLogger)

	schedConfig := importer.SchedulerConfig{
		MaxInFlight:     cfg.Importer.MaxInFlight,
		BatchSize:       cfg.Importer.BatchSize,
		AdmissionWindow: time.Duration(cfg.Importer.AdmissionWindowSeconds) * time.Second,
		StaleAfter:      time.Duration(cfg.Importer.StaleAfterMinutes) * time.Minute,
		PollInterval:    time.Duration(cfg.Importer.PollIntervalMillis) * time.Millisecond,
		ReclaimEvery:    cfg.Importer.ReclaimEvery,
	}
	scheduler := importer.NewScheduler(
		stores,
		apiClient,
		apiClient,
		apiClient,
		importMetrics,
		schedConfig,
		appLogger,
	)
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	statsCron, err := startStatsCron(sessionStore, itemStore, schedConfig.StaleAfter, importMetrics, appLogger)
	if err != nil {
		scheduler.Stop()
		return err
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: newRouter(db, registry),
	}
	serverErrs := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrs <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErrs:
		slog.Error("HTTP server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	<-statsCron.Stop().Done()
	scheduler.Stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}

	slog.Info("Worker stopped")
	return nil
}

// openDatabase opens the pgx stdlib pool and verifies connectivity.
func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// startStatsCron refreshes the pending/in-flight/session gauges on a fixed
// schedule, off the scheduler's polling loop.
func startStatsCron(
	sessions *postgres.PostgresSessionStore,
	items *postgres.PostgresItemStore,
	staleAfter time.Duration,
	importMetrics *metrics.ImportMetrics,
	appLogger *slog.Logger,
) (*cron.Cron, error) {
	collector := importer.NewStatsCollector(sessions, items, staleAfter, importMetrics, appLogger)

	c := cron.New()
	_, err := c.AddFunc(statsSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), dbConnectTimeout)
		defer cancel()
		if err := collector.Refresh(ctx); err != nil {
			slog.Warn("Stats refresh failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule stats refresh: %w", err)
	}
	c.Start()

	return c, nil
}

// newRouter exposes the operational surface: a liveness probe that checks
// the database and the Prometheus metrics endpoint.
func newRouter(db *sql.DB, registry *prometheus.Registry) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return r
}
