package queue

import (
	"fmt"
	"time"

	"unicast/internal/domain/messaging"

	"github.com/hibiken/asynq"
)

// NewClient creates a new asynq client connected to Redis.
func NewClient(redisAddr, password string, db int) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})
}

// NewServer creates a new asynq server connected to Redis.
func NewServer(redisAddr, password string, db int, concurrency int) *asynq.Server {
	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: password,
			DB:       db,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"dispatch": 10, // priority weight
				"default":  1,
			},
			RetryDelayFunc: func(n int, e error, t *asynq.Task) time.Duration {
				// Exponential backoff: 30s, 60s, 120s, ...
				return time.Duration(30*(1<<uint(n-1))) * time.Second
			},
		},
	)
}

// EnqueueDispatch enqueues a batch dispatch to run at the given time.
func EnqueueDispatch(client *asynq.Client, req messaging.DispatchRequest, at time.Time, maxRetry int) error {
	task, err := messaging.NewDispatchTask(req)
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}

	opts := []asynq.Option{
		asynq.MaxRetry(maxRetry),
		asynq.Queue("dispatch"),
	}
	if at.After(time.Now()) {
		opts = append(opts, asynq.ProcessAt(at))
	}

	if _, err := client.Enqueue(task, opts...); err != nil {
		return fmt.Errorf("enqueuing task: %w", err)
	}

	return nil
}
