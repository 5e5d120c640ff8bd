// Command server runs the bookmark API: the HTTP surface that accepts
// submissions, the in-process job queue and worker pool that enrich them,
// and the reconciler that persists results to Postgres.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/linkhive/linkhive-api/internal/api"
	"github.com/linkhive/linkhive-api/internal/api/middleware"
	"github.com/linkhive/linkhive-api/internal/config"
	"github.com/linkhive/linkhive-api/internal/events"
	"github.com/linkhive/linkhive-api/internal/handler"
	"github.com/linkhive/linkhive-api/internal/platform/enrichment"
	"github.com/linkhive/linkhive-api/internal/platform/gemini"
	"github.com/linkhive/linkhive-api/internal/platform/logger"
	"github.com/linkhive/linkhive-api/internal/platform/postgres"
	"github.com/linkhive/linkhive-api/internal/queue"
	"github.com/linkhive/linkhive-api/internal/service"
	"github.com/linkhive/linkhive-api/internal/service/auth"
	"github.com/linkhive/linkhive-api/internal/worker"
)

const (
	dbPingTimeout       = 5 * time.Second
	httpClientTimeout   = 15 * time.Second
	readHeaderTimeout   = 10 * time.Second
	shutdownGracePeriod = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(cfg.Server.LogLevel)
	slog.SetDefault(log)

	db, err := openDatabase(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", "error", err)
		}
	}()

	if err := postgres.RunMigrations(db); err != nil {
		return err
	}

	// Stores and the reconciler over them.
	bookmarkStore := postgres.NewPostgresBookmarkStore(db, log)
	tagStore := postgres.NewPostgresTagStore(db, log)
	feedStore := postgres.NewPostgresFeedStore(db, log)
	jobStore := postgres.NewPostgresJobStore(db, log)
	reconciler := service.NewReconciler(db, bookmarkStore, tagStore, feedStore, log)

	// Queue with durable mirroring; unfinished jobs from the previous run
	// are requeued before any worker starts.
	jobQueue := queue.New(queue.Config{
		MaxRetries:  cfg.Queue.MaxRetries,
		BackoffBase: queue.DefaultConfig().BackoffBase,
		BackoffCap:  queue.DefaultConfig().BackoffCap,
	}, jobStore, log)
	if err := jobQueue.Recover(context.Background()); err != nil {
		return fmt.Errorf("failed to recover queued jobs: %w", err)
	}

	// Workers request follow-up jobs through the emitter rather than
	// holding the queue directly.
	emitter := events.NewInMemoryEventEmitter(log)
	emitter.RegisterHandler(queue.NewEnqueueEventHandler(jobQueue, log))

	dispatcher, err := buildDispatcher(cfg, jobQueue, reconciler, emitter, log)
	if err != nil {
		return err
	}
	dispatcher.Start()

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	router := newRouter(
		api.NewBookmarkHandler(reconciler, jobQueue),
		api.NewFeedHandler(reconciler, jobQueue),
		api.NewQueueHandler(jobQueue),
		middleware.NewAuthMiddleware(jwtService),
		middleware.NewAdminMiddleware(cfg.Auth.AdminKeyHash),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		log.Info("shutdown signal received", "signal", sig.String())
	}

	// Shutdown order: stop accepting requests, stop accepting jobs, then
	// let workers finish their current job. Unfinished jobs are recovered
	// from the store on the next start.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	}
	jobQueue.Close()
	dispatcher.Stop()

	log.Info("server stopped")
	return nil
}

// openDatabase opens and verifies the Postgres connection.
func openDatabase(url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// buildDispatcher wires every action handler into the worker pool. The
// description action is only registered when an API key is configured;
// without it, the metadata handler gets no emitter, so bookmarks are
// saved without ever chaining a description job.
func buildDispatcher(
	cfg *config.Config,
	jobQueue *queue.Queue,
	reconciler *service.Reconciler,
	emitter events.EventEmitter,
	log *slog.Logger,
) (*worker.Dispatcher, error) {
	httpClient := &http.Client{Timeout: httpClientTimeout}
	capture := enrichment.NewScreenshotClient(cfg.Services.ScreenshotURL, httpClient, log)
	resolver := enrichment.NewMetadataClient(cfg.Services.MetadataURL, httpClient, log)

	dispatcher := worker.New(jobQueue, worker.Config{
		WorkerCount:    cfg.Queue.WorkerCount,
		HandlerTimeout: cfg.Queue.HandlerTimeout,
		PollInterval:   cfg.Queue.PollInterval,
	}, log)

	dispatcher.Register(queue.ActionAddScreenshot,
		handler.NewScreenshotHandler(capture, reconciler, log))
	dispatcher.Register(queue.ActionAddFeed,
		handler.NewFeedHandler(httpClient, reconciler, log))

	var describeEmitter events.EventEmitter
	if cfg.Services.GeminiAPIKey == "" {
		log.Warn("description generation disabled, no Gemini API key configured")
	} else {
		generator, err := gemini.NewGenerator(
			context.Background(),
			cfg.Services.GeminiAPIKey,
			cfg.Services.GeminiModel,
			log,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize description generator: %w", err)
		}
		dispatcher.Register(queue.ActionAddDescription,
			handler.NewDescribeHandler(generator, reconciler, reconciler, log))
		describeEmitter = emitter
	}

	dispatcher.Register(queue.ActionAddMetadata,
		handler.NewMetadataHandler(resolver, reconciler, describeEmitter, log))

	return dispatcher, nil
}
