package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/careform/intake/internal/api/handlers"
	"github.com/careform/intake/internal/api/middleware"
	"github.com/careform/intake/internal/config"
	"github.com/careform/intake/internal/observability"
	"github.com/careform/intake/internal/repository"
	"github.com/careform/intake/internal/service"
	"github.com/careform/intake/internal/workers"
	"github.com/careform/intake/pkg/database"
)

// webhookFanOutBatch is the InsertMany batch size for webhook dispatch jobs.
const webhookFanOutBatch = 100

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg.LogLevel)

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Repositories
	formsRepo := repository.NewFormsRepository(db)
	sessionsRepo := repository.NewSessionsRepository(db)
	webhooksRepo := repository.NewWebhooksRepository(db)

	// Webhook delivery pipeline: River worker + Standard Webhooks sender
	sender := service.NewWebhookSenderImpl(webhooksRepo, cfg.WebhookRateLimit)

	riverClient, err := initRiver(ctx, db, cfg, webhooksRepo, sender)
	if err != nil {
		slog.Error("Failed to initialize River job queue", "error", err)
		os.Exit(1)
	}

	// Event fan-out: services publish, the webhook provider enqueues jobs
	publisher := service.NewMessagePublisherManager()
	publisher.RegisterProvider(service.NewWebhookProvider(riverClient, webhooksRepo, cfg.WebhookMaxAttempts, webhookFanOutBatch))

	// Services
	formsService, err := service.NewFormsService(formsRepo, cfg.FormCacheSize)
	if err != nil {
		slog.Error("Failed to initialize forms service", "error", err)
		os.Exit(1)
	}
	sessionsService := service.NewSessionsService(sessionsRepo, formsService, publisher)
	webhooksService := service.NewWebhooksService(webhooksRepo, publisher)

	// Handlers
	formsHandler := handlers.NewFormsHandler(formsService)
	sessionsHandler := handlers.NewSessionsHandler(sessionsService)
	webhooksHandler := handlers.NewWebhooksHandler(webhooksService)
	healthHandler := handlers.NewHealthHandler()

	// Public endpoints: the intake client talks to these with no credentials.
	publicMux := http.NewServeMux()
	publicMux.HandleFunc("GET /health", healthHandler.Check)
	publicMux.HandleFunc("GET /v1/forms/{slug}", formsHandler.Get)
	publicMux.HandleFunc("POST /v1/sessions", sessionsHandler.Start)
	publicMux.HandleFunc("GET /v1/sessions/{id}", sessionsHandler.Get)
	publicMux.HandleFunc("PATCH /v1/sessions/{id}", sessionsHandler.Update)
	publicMux.HandleFunc("POST /v1/sessions/{id}/submit", sessionsHandler.Submit)

	// Admin endpoints: form authoring and webhook management.
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("PUT /v1/forms/{slug}", formsHandler.Upsert)
	adminMux.HandleFunc("POST /v1/webhooks", webhooksHandler.Create)
	adminMux.HandleFunc("GET /v1/webhooks", webhooksHandler.List)
	adminMux.HandleFunc("GET /v1/webhooks/{id}", webhooksHandler.Get)
	adminMux.HandleFunc("PATCH /v1/webhooks/{id}", webhooksHandler.Update)
	adminMux.HandleFunc("DELETE /v1/webhooks/{id}", webhooksHandler.Delete)

	var adminHandler http.Handler = adminMux
	adminHandler = middleware.Auth(cfg.AdminAPIKey)(adminHandler)

	mainMux := http.NewServeMux()
	mainMux.Handle("PUT /v1/forms/{slug}", adminHandler)
	mainMux.Handle("/v1/webhooks", adminHandler)
	mainMux.Handle("/v1/webhooks/", adminHandler)
	mainMux.Handle("/", publicMux)

	var handler http.Handler = mainMux
	handler = middleware.MaxBody(cfg.MaxRequestBodyBytes)(handler)
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Background sweep for sessions the lead walked away from
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	sweeper := workers.NewAbandonedSessionsWorker(sessionsRepo, cfg.SessionSweepInterval, cfg.SessionIdleTimeout)
	go sweeper.Start(workerCtx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 1. Stop accepting new HTTP requests
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// 2. Drain the event channel so enqueued events reach River
	publisher.Shutdown()

	// 3. Stop River (waits for in-flight deliveries)
	slog.Info("Stopping River job queue...")
	if err := riverClient.Stop(shutdownCtx); err != nil {
		slog.Error("River forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

// setupLogging configures slog with the specified log level. The trace
// context handler adds request and session ids to every line.
func setupLogging(level string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	inner := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(observability.NewTraceContextHandler(inner)))
}

// initRiver creates the River client with the webhook dispatch worker and
// starts job processing.
func initRiver(
	ctx context.Context,
	db *pgxpool.Pool,
	cfg *config.Config,
	webhooksRepo *repository.WebhooksRepository,
	sender service.WebhookSender,
) (*river.Client[pgx.Tx], error) {
	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, workers.NewWebhookDispatchWorker(webhooksRepo, sender))

	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.WebhookMaxConcurrent},
		},
		Workers:     riverWorkers,
		JobTimeout:  workers.WebhookDeliveryTimeout,
		MaxAttempts: cfg.WebhookMaxAttempts,
	})
	if err != nil {
		return nil, err
	}

	if err := riverClient.Start(ctx); err != nil {
		return nil, err
	}

	return riverClient, nil
}
