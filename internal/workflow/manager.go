package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"clipstream/internal/config"
	"clipstream/internal/encoding"
	"clipstream/internal/logging"
	"clipstream/internal/queue"
	"clipstream/internal/tasks"
	"clipstream/internal/videos"
)

// Manager runs the asynq worker pool and the stale-job sweeper.
type Manager struct {
	cfg     *config.Config
	server  *asynq.Server
	mux     *asynq.ServeMux
	sweeper *Sweeper
	logger  *slog.Logger
	cancel  context.CancelFunc
}

// NewManager wires the handlers and sweeper into an asynq server.
func NewManager(
	cfg *config.Config,
	store *queue.Store,
	videoStore *videos.Store,
	encoder *encoding.Encoder,
	dispatcher *Dispatcher,
	logger *slog.Logger,
) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	managerLogger := logging.WithComponent(logger, "workflow")

	server := asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: cfg.Workflow.Concurrency,
		Queues:      map[string]int{queueName: 1},
		Logger:      asynqLogger{logger: managerLogger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			managerLogger.Error("task handler failed",
				logging.String("task_type", task.Type()), logging.Error(err))
		}),
	})

	handlers := NewHandlers(cfg, store, videoStore, encoder, dispatcher, logger)
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeVideoUploaded, handlers.HandleVideoUploaded)
	mux.HandleFunc(tasks.TypeEncodeJob, handlers.HandleEncodeJob)

	sweeper := NewSweeper(
		cfg.Workflow.HeartbeatTimeout,
		cfg.Workflow.SweepInterval,
		cfg.Workflow.AutoRetry,
		cfg.Workflow.MaxRetries,
		store, videoStore, dispatcher, logger,
	)

	return &Manager{
		cfg:     cfg,
		server:  server,
		mux:     mux,
		sweeper: sweeper,
		logger:  managerLogger,
	}
}

// Start recovers orphaned jobs, then launches the worker pool and the sweep
// loop. It returns once the server is accepting tasks.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.sweeper.RecoverOnStartup(ctx); err != nil {
		return fmt.Errorf("startup recovery: %w", err)
	}
	if err := m.server.Start(m.mux); err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.sweeper.Run(sweepCtx)

	m.logger.Info("workflow started",
		logging.Int("concurrency", m.cfg.Workflow.Concurrency),
		logging.Int("sweep_interval_seconds", m.cfg.Workflow.SweepInterval))
	return nil
}

// Stop drains the worker pool and halts the sweeper.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.server.Shutdown()
	m.logger.Info("workflow stopped")
}

// asynqLogger adapts slog to asynq's logging interface.
type asynqLogger struct {
	logger *slog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.logger.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.logger.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.logger.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.logger.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) { l.logger.Error(fmt.Sprint(args...)) }
