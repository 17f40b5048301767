package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"clipstream/internal/logging"
	"clipstream/internal/queue"
	"clipstream/internal/videos"
)

// Sweeper fails processing jobs whose heartbeats expired and re-queues them
// while retry budget remains.
type Sweeper struct {
	cfg        sweepConfig
	store      *queue.Store
	videoStore *videos.Store
	enqueuer   EncodeEnqueuer
	logger     *slog.Logger
}

type sweepConfig struct {
	heartbeatTimeout time.Duration
	sweepInterval    time.Duration
	autoRetry        bool
	maxRetries       int
}

// NewSweeper constructs the stale-job sweeper.
func NewSweeper(
	heartbeatTimeoutSeconds, sweepIntervalSeconds int,
	autoRetry bool,
	maxRetries int,
	store *queue.Store,
	videoStore *videos.Store,
	enqueuer EncodeEnqueuer,
	logger *slog.Logger,
) *Sweeper {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sweeper{
		cfg: sweepConfig{
			heartbeatTimeout: time.Duration(heartbeatTimeoutSeconds) * time.Second,
			sweepInterval:    time.Duration(sweepIntervalSeconds) * time.Second,
			autoRetry:        autoRetry,
			maxRetries:       maxRetries,
		},
		store:      store,
		videoStore: videoStore,
		enqueuer:   enqueuer,
		logger:     logging.WithComponent(logger, "sweep"),
	}
}

// Run sweeps on the configured interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx, time.Now().Add(-s.cfg.heartbeatTimeout)); err != nil {
				s.logger.Error("sweep failed", logging.Error(err))
			}
		}
	}
}

// SweepOnce fails every processing job stale at the cutoff and applies the
// retry policy to each. It returns how many jobs it settled.
func (s *Sweeper) SweepOnce(ctx context.Context, cutoff time.Time) (int, error) {
	swept, err := s.store.FailStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, job := range swept {
		jobLogger := s.logger.With(
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String(logging.FieldVideoID, job.VideoID))
		jobLogger.Warn("stale job failed", logging.Int("retry_count", job.RetryCount))

		if err := s.videoStore.SetStatus(ctx, job.VideoID, videos.StatusFailed); err != nil {
			jobLogger.Warn("failed to mark video failed", logging.Error(err))
		}
		if !s.cfg.autoRetry || job.RetryCount > s.cfg.maxRetries {
			continue
		}
		if _, err := s.store.MarkRetry(ctx, job.ID); err != nil {
			if !errors.Is(err, queue.ErrInvalidTransition) {
				jobLogger.Warn("failed to park stale job for retry", logging.Error(err))
			}
			continue
		}
		if err := s.enqueuer.EnqueueEncode(ctx, job.ID, retryDispatchDelay); err != nil {
			jobLogger.Warn("failed to dispatch stale job retry", logging.Error(err))
			continue
		}
		jobLogger.Info("stale job re-queued")
	}
	return len(swept), nil
}

// RecoverOnStartup settles jobs orphaned in processing by a previous run.
// Every processing job is treated as stale because no worker can own one
// before the server starts.
func (s *Sweeper) RecoverOnStartup(ctx context.Context) error {
	count, err := s.SweepOnce(ctx, time.Now().Add(time.Second))
	if err != nil {
		return err
	}
	if count > 0 {
		s.logger.Info("recovered orphaned jobs", logging.Int("count", count))
	}
	return nil
}
