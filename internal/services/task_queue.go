package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/huangang/taskboard/internal/config"
	"github.com/huangang/taskboard/pkg/logger"
)

const (
	TaskTypeInvitationEmail = "invitation:email"
)

// InvitationProcessor delivers one invitation notice, usually EmailService.SendInvitation.
type InvitationProcessor func(context.Context, *InvitationNotice) error

// TaskQueue moves invitation delivery off the request goroutine. Handing a
// notice to the queue is what InvitationService sees as sending it.
type TaskQueue interface {
	InvitationNotifier
	// IsAsync returns true if notices are processed by a separate worker
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// NewTaskQueue uses Redis when it is enabled and reachable, otherwise an
// in-process queue that runs processor itself.
func NewTaskQueue(cfg *config.RedisConfig, processor InvitationProcessor) TaskQueue {
	if cfg != nil && cfg.Enabled {
		queue, err := NewAsyncQueue(cfg)
		if err == nil {
			logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Addr)
			return queue
		}
		logger.Warn().Err(err).Msg("[TaskQueue] Redis unavailable, falling back to sync mode")
	}
	queue := NewSyncQueue()
	queue.SetProcessor(processor)
	return queue
}

func redisClientOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 3 * time.Second,
	}
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

// NewAsyncQueue creates a new Redis-based async queue
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := redisClientOpt(cfg)
	client := asynq.NewClient(redisOpt)

	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

// SendInvitation enqueues the notice for the worker.
func (q *AsyncQueue) SendInvitation(ctx context.Context, notice *InvitationNotice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return err
	}

	t := asynq.NewTask(TaskTypeInvitationEmail, payload)
	info, err := q.client.EnqueueContext(ctx, t,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("queue", info.Queue).Msg("[AsyncQueue] invitation email enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements TaskQueue without Redis: each notice is processed on
// its own goroutine, detached from the request that produced it.
type SyncQueue struct {
	processor InvitationProcessor
	timeout   time.Duration
	wg        sync.WaitGroup
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{timeout: time.Minute}
}

func (q *SyncQueue) SetProcessor(processor InvitationProcessor) {
	q.processor = processor
}

func (q *SyncQueue) SendInvitation(ctx context.Context, notice *InvitationNotice) error {
	if q.processor == nil {
		logger.Warn().Msg("[SyncQueue] no processor set, invitation email dropped")
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.timeout)
		defer cancel()
		if err := q.processor(runCtx, notice); err != nil {
			logger.Warn().Err(err).Str("email", notice.Email).Msg("[SyncQueue] invitation email failed")
		}
	}()

	return nil
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close waits for in-flight notices.
func (q *SyncQueue) Close() error {
	q.wg.Wait()
	return nil
}
