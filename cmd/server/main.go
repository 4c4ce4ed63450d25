package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"unicast/internal/config"
	"unicast/internal/domain/messaging"
	"unicast/internal/infra/directory"
	"unicast/internal/infra/email"
	"unicast/internal/infra/queue"
	"unicast/internal/infra/ratelimit"
	"unicast/internal/infra/sms"
	"unicast/internal/infra/store"
	"unicast/internal/infra/template"
	"unicast/internal/router"

	"github.com/hibiken/asynq"
)

// queueEnqueuer adapts the asynq client to the messaging.Enqueuer interface.
type queueEnqueuer struct {
	client   *asynq.Client
	maxRetry int
}

func (q *queueEnqueuer) EnqueueDispatch(req messaging.DispatchRequest, at time.Time) error {
	return queue.EnqueueDispatch(q.client, req, at, q.maxRetry)
}

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded", "port", cfg.Server.Port, "mode", cfg.Server.Mode)

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	// Supabase message store
	msgStore, err := store.NewSupabaseStore(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	if err != nil {
		slog.Error("failed to initialize message store", "error", err)
		os.Exit(1)
	}

	// Supabase user directory + event store (read-only collaborators)
	dir, err := directory.NewSupabaseDirectory(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	if err != nil {
		slog.Error("failed to initialize directory", "error", err)
		os.Exit(1)
	}
	events := dir.Events()
	slog.Info("supabase store initialized")

	// Channel providers — constructed once, injected into the dispatcher.
	// Missing credentials degrade to per-cell failures, never a crash.
	emailProvider := email.NewSendGridProvider(
		cfg.Email.APIKey,
		cfg.Email.FromAddress,
		cfg.Email.FromName,
	)
	smsProvider := sms.NewTwilioProvider(
		cfg.SMS.AccountSID,
		cfg.SMS.AuthToken,
		cfg.SMS.FromNumber,
	)

	// Template renderer
	renderer := template.NewRenderer()

	// Per-destination send cap (optional)
	var limiter messaging.RecipientLimiter
	if cfg.SendCap.MaxPerHour > 0 {
		sendCap := ratelimit.NewRedisSendCap(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.SendCap.MaxPerHour,
		)
		defer sendCap.Close()
		limiter = sendCap
		slog.Info("send cap initialized", "max_per_hour", cfg.SendCap.MaxPerHour)
	}

	// Asynq client (for scheduled dispatch)
	asynqClient := queue.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	defer asynqClient.Close()
	slog.Info("asynq client initialized", "redis", cfg.Redis.Address)

	enqueuer := &queueEnqueuer{
		client:   asynqClient,
		maxRetry: cfg.Queue.MaxRetry,
	}

	// Dispatch engine + service
	dispatcher := messaging.NewDispatcher(
		events, dir, msgStore, renderer, limiter, cfg.Dispatch.Workers,
		emailProvider, smsProvider,
	)
	service := messaging.NewService(dispatcher, msgStore, events, enqueuer)

	// Handler
	handler := messaging.NewHandler(service)

	// Router
	r := router.New(cfg, handler)

	// ==========================================
	// HTTP Server with Graceful Shutdown
	// ==========================================

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Give outstanding requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}
