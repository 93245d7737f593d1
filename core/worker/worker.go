package worker

import (
	"context"
	"fmt"

	"smartschedule/core/config"
	"smartschedule/core/logger"

	"github.com/hibiken/asynq"
)

// Enqueuer schedules background tasks.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error
}

type Worker struct {
	client    *asynq.Client
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
}

func New(redisCfg config.RedisConfig, cfg config.WorkerConfig) *Worker {
	opt := asynq.RedisClientOpt{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	return &Worker{
		client: asynq.NewClient(opt),
		server: asynq.NewServer(opt, asynq.Config{
			Concurrency: concurrency,
			Logger:      logger.Logger(),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Worker:Task:Failed", "type", task.Type(), "error", err)
			}),
		}),
		scheduler: asynq.NewScheduler(opt, &asynq.SchedulerOpts{Logger: logger.Logger()}),
		mux:       asynq.NewServeMux(),
	}
}

func (w *Worker) HandleFunc(taskType string, handler func(context.Context, *asynq.Task) error) {
	w.mux.HandleFunc(taskType, handler)
}

// Schedule registers a periodic task.
func (w *Worker) Schedule(cronspec string, task *asynq.Task, opts ...asynq.Option) error {
	entryID, err := w.scheduler.Register(cronspec, task, opts...)
	if err != nil {
		return fmt.Errorf("register %s: %w", task.Type(), err)
	}
	logger.Info("Worker:Schedule:Registered", "type", task.Type(), "cron", cronspec, "entry_id", entryID)
	return nil
}

func (w *Worker) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	info, err := w.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return err
	}
	logger.Info("Worker:Enqueue:Success", "type", task.Type(), "id", info.ID, "queue", info.Queue)
	return nil
}

// Start runs the task server and scheduler in the background.
func (w *Worker) Start() error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start worker server: %w", err)
	}
	if err := w.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	logger.Info("Worker:Start:Running")
	return nil
}

func (w *Worker) Shutdown() {
	w.scheduler.Shutdown()
	w.server.Shutdown()
	if err := w.client.Close(); err != nil {
		logger.Warn("Worker:Shutdown:ClientCloseError", "error", err)
	}
	logger.Info("Worker:Shutdown:Done")
}
