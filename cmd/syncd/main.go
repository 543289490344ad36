package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Priya8975/entity-sync/internal/api"
	"github.com/Priya8975/entity-sync/internal/bus"
	"github.com/Priya8975/entity-sync/internal/config"
	"github.com/Priya8975/entity-sync/internal/engine"
	"github.com/Priya8975/entity-sync/internal/store"
	ws "github.com/Priya8975/entity-sync/internal/websocket"
	"github.com/Priya8975/entity-sync/internal/worker"
	"github.com/Priya8975/entity-sync/migrations"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize PostgreSQL
	ctx := context.Background()
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := pgStore.RunMigrations(ctx, migrations.FS); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Initialize Redis
	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")

	// Handler registry: which entity types this service replicates, which
	// fields it projects, and which local entities must exist first.
	registry := engine.NewRegistry()
	registry.Register("company", engine.NewProjectionHandler(
		[]string{"name", "country"},
	))
	registry.Register("employee", engine.NewProjectionHandler(
		[]string{"name", "email", "companyId"},
		engine.Ref{Field: "companyId", EntityType: "company"},
	))

	waiter := engine.NewWaiter(cfg.DependencyWaitPollInterval, cfg.DependencyWaitMax)
	consumer := engine.NewConsumer(registry, pgStore, waiter, logger)

	queue := bus.NewRedisQueue(redisStore.Client(), logger)
	guard := engine.NewStoreGuard(redisStore.Client(), logger)

	hub := ws.NewHub(logger)
	go hub.Run()

	runner := worker.NewRunner(consumer, queue, guard, pgStore, hub, worker.RetryPolicy{
		MaxAttempts: cfg.MaxRetryAttempts,
		MaxElapsed:  cfg.MaxRetryElapsed,
		BackoffBase: cfg.RetryBackoffBase,
	}, logger)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	pool := worker.NewPool(cfg.NumWorkers, runner, logger)
	pool.Start(workerCtx)

	dispatcher := worker.NewDispatcher(queue, pool, logger)
	dispatcherDone := make(chan struct{})
	go func() {
		dispatcher.Start(workerCtx)
		close(dispatcherDone)
	}()

	// Setup router
	router := api.NewRouter(pgStore, queue, guard, hub)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	// Cancelling the worker context aborts in-flight dependency waits;
	// their messages requeue rather than ack, so they redeliver later. The
	// dispatcher must have exited before the pool stops: a poll in flight
	// during cancellation still submits its claimed messages, and a claim
	// that cannot reach a worker would be lost.
	stopWorkers()
	<-dispatcherDone
	pool.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
