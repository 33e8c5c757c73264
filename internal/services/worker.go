package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/huangang/taskboard/internal/config"
	"github.com/huangang/taskboard/pkg/logger"
)

// Worker processes invitation emails enqueued by AsyncQueue.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor InvitationProcessor
	running   bool
	mu        sync.Mutex
}

// NewWorker returns nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig, processor InvitationProcessor) *Worker {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	server := asynq.NewServer(
		redisClientOpt(cfg),
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Warn().Err(err).Str("type", task.Type()).Msg("[Worker] task failed")
			}),
		},
	)

	w := &Worker{
		server:    server,
		mux:       asynq.NewServeMux(),
		processor: processor,
	}
	w.mux.HandleFunc(TaskTypeInvitationEmail, w.handleInvitationEmail)
	return w
}

// Start begins processing tasks
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	w.running = true
	logger.Info().Msg("[Worker] async worker started")
	return nil
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	logger.Info().Msg("[Worker] shutting down...")
	w.server.Shutdown()
	w.running = false
	logger.Info().Msg("[Worker] shutdown complete")
}

func (w *Worker) handleInvitationEmail(ctx context.Context, t *asynq.Task) error {
	var notice InvitationNotice
	if err := json.Unmarshal(t.Payload(), &notice); err != nil {
		// malformed payloads are not retried
		return fmt.Errorf("decode invitation task: %v: %w", err, asynq.SkipRetry)
	}
	if w.processor == nil {
		logger.Warn().Msg("[Worker] no processor set")
		return nil
	}
	return w.processor(ctx, &notice)
}
