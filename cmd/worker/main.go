package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"unicast/internal/config"
	"unicast/internal/domain/messaging"
	"unicast/internal/infra/directory"
	"unicast/internal/infra/email"
	"unicast/internal/infra/queue"
	"unicast/internal/infra/ratelimit"
	"unicast/internal/infra/sms"
	"unicast/internal/infra/store"
	"unicast/internal/infra/template"

	"github.com/hibiken/asynq"
)

// The worker consumes scheduled dispatch tasks and runs them through the
// same dispatch engine as the synchronous API path. From the engine's
// point of view the queue is just another caller.
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

	slog.Info("worker configuration loaded")

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	msgStore, err := store.NewSupabaseStore(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	if err != nil {
		slog.Error("failed to initialize message store", "error", err)
		os.Exit(1)
	}

	dir, err := directory.NewSupabaseDirectory(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	if err != nil {
		slog.Error("failed to initialize directory", "error", err)
		os.Exit(1)
	}
	events := dir.Events()
	slog.Info("supabase store initialized")

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

	renderer := template.NewRenderer()

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
	}

	dispatcher := messaging.NewDispatcher(
		events, dir, msgStore, renderer, limiter, cfg.Dispatch.Workers,
		emailProvider, smsProvider,
	)
	service := messaging.NewService(dispatcher, msgStore, events, nil)

	// ==========================================
	// Asynq Server (task processing)
	// ==========================================

	asynqServer := queue.NewServer(
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Queue.Concurrency,
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(messaging.TaskTypeDispatch, func(ctx context.Context, task *asynq.Task) error {
		payload, err := messaging.ParseDispatchTaskPayload(task.Payload())
		if err != nil {
			return err
		}

		result, err := service.Dispatch(ctx, payload.Request)
		if err != nil {
			// Call-level precondition failures (event deleted, organizer
			// changed) will not heal on retry; log and drop the task.
			slog.Error("scheduled dispatch rejected",
				"event_id", payload.Request.EventID,
				"type", payload.Request.Type,
				"error", err,
			)
			return nil
		}

		slog.Info("scheduled dispatch completed",
			"event_id", payload.Request.EventID,
			"type", payload.Request.Type,
			"sent", result.Sent,
			"failed", result.Failed,
		)
		return nil
	})

	go func() {
		slog.Info("worker starting",
			"concurrency", cfg.Queue.Concurrency,
			"redis", cfg.Redis.Address,
		)
		if err := asynqServer.Run(mux); err != nil {
			slog.Error("worker failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// ==========================================
	// Graceful Shutdown
	// ==========================================

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	asynqServer.Shutdown()
	slog.Info("worker exited gracefully")
}
