package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
)

// WorkerConfig configures the task server.
type WorkerConfig struct {
	RedisOpts       asynq.RedisClientOpt
	Logger          *slog.Logger
	Concurrency     int
	ShutdownTimeout time.Duration
}

// Worker processes ledger tasks and runs the periodic schedule.
type Worker struct {
	opts      asynq.RedisClientOpt
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// NewWorker builds a worker bound to QueueDefault. Register handlers with
// Handle and periodic tasks with Schedule before calling Run.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	logger = logger.With(slog.String("component", "worker"))
	server := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          map[string]int{QueueDefault: 1},
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          asynqLogger{logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			logger.Error("task failed",
				slog.String("type", task.Type()),
				slog.Int("retried", retried),
				slog.Any("error", err))
		}),
	})
	return &Worker{opts: cfg.RedisOpts, server: server, mux: asynq.NewServeMux(), logger: logger}
}

// Handle registers the handler for taskType.
func (w *Worker) Handle(taskType string, handler asynq.HandlerFunc) {
	w.mux.HandleFunc(taskType, handler)
}

// Schedule enqueues task on the cron spec, evaluated in UTC.
func (w *Worker) Schedule(spec string, task *asynq.Task, opts ...asynq.Option) error {
	if spec == "" {
		return errors.New("worker: empty cron spec")
	}
	if w.scheduler == nil {
		w.scheduler = asynq.NewScheduler(w.opts, &asynq.SchedulerOpts{
			Location: time.UTC,
			Logger:   asynqLogger{w.logger},
			PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
				if err != nil {
					w.logger.Error("scheduled enqueue failed", slog.Any("error", err))
					return
				}
				w.logger.Info("scheduled task enqueued", slog.String("type", info.Type), slog.String("id", info.ID))
			},
		})
	}
	if _, err := w.scheduler.Register(spec, task, opts...); err != nil {
		return fmt.Errorf("worker: schedule %s %q: %w", task.Type(), spec, err)
	}
	return nil
}

// Run serves tasks until ctx is cancelled, then drains in-flight tasks.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("worker: start server: %w", err)
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			w.server.Shutdown()
			return fmt.Errorf("worker: start scheduler: %w", err)
		}
	}
	w.logger.Info("worker started")
	<-ctx.Done()
	w.logger.Info("worker stopping")
	if w.scheduler != nil {
		w.scheduler.Shutdown()
	}
	w.server.Shutdown()
	return ctx.Err()
}

// asynqLogger routes asynq's internal logging through slog.
type asynqLogger struct {
	l *slog.Logger
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }

func (a asynqLogger) Fatal(args ...interface{}) {
	a.l.Error(fmt.Sprint(args...))
	os.Exit(1)
}
