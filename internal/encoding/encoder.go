package encoding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"clipstream/internal/config"
	"clipstream/internal/logging"
	"clipstream/internal/notifications"
	"clipstream/internal/objectstore"
	"clipstream/internal/queue"
	"clipstream/internal/services"
	"clipstream/internal/transcode"
	"clipstream/internal/videos"
)

// progressPersistInterval caps how often encode progress is written back to
// the store.
const progressPersistInterval = 2 * time.Second

// Encoder drives one job through the full encode pipeline.
type Encoder struct {
	cfg        *config.Config
	store      *queue.Store
	videoStore *videos.Store
	objects    objectstore.Store
	transcoder transcode.Transcoder
	notifier   notifications.Service
	logger     *slog.Logger
}

// New constructs an Encoder.
func New(
	cfg *config.Config,
	store *queue.Store,
	videoStore *videos.Store,
	objects objectstore.Store,
	transcoder transcode.Transcoder,
	notifier notifications.Service,
	logger *slog.Logger,
) *Encoder {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewNop()
	}
	return &Encoder{
		cfg:        cfg,
		store:      store,
		videoStore: videoStore,
		objects:    objects,
		transcoder: transcoder,
		notifier:   notifier,
		logger:     logging.WithComponent(logger, "encoder"),
	}
}

// Process claims the job and runs it to a settled state. The returned error
// reports infrastructure problems only; encode failures are settled onto the
// job itself.
func (e *Encoder) Process(ctx context.Context, jobID int64) error {
	job, err := e.store.Start(ctx, jobID)
	if err != nil {
		if errors.Is(err, queue.ErrInvalidTransition) {
			// Another worker owns the job, or it has already settled.
			e.logger.Info("skipping job not in pending state",
				logging.Int64(logging.FieldJobID, jobID), logging.Error(err))
			return nil
		}
		if errors.Is(err, queue.ErrNotFound) {
			e.logger.Warn("job vanished before encode", logging.Int64(logging.FieldJobID, jobID))
			return nil
		}
		return fmt.Errorf("claim job %d: %w", jobID, err)
	}

	jobLogger := e.logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldVideoID, job.VideoID),
	)
	jobLogger.Info("encoding started",
		logging.String("source_key", job.SourceKey),
		logging.Int("qualities", len(e.cfg.Encoding.Qualities)))

	if err := e.videoStore.SetStatus(ctx, job.VideoID, videos.StatusProcessing); err != nil {
		jobLogger.Warn("failed to mark video processing", logging.Error(err))
	}

	stopHeartbeat := e.startHeartbeat(ctx, job.ID, jobLogger)
	result, pipelineErr := e.runPipeline(ctx, job, jobLogger)
	stopHeartbeat()

	if pipelineErr != nil {
		return e.settleFailure(ctx, job, pipelineErr, jobLogger)
	}
	return e.settleSuccess(ctx, job, result, jobLogger)
}

func (e *Encoder) settleSuccess(ctx context.Context, job *queue.Job, result *pipelineResult, jobLogger *slog.Logger) error {
	if _, err := e.store.Complete(ctx, job.ID); err != nil {
		return fmt.Errorf("complete job %d: %w", job.ID, err)
	}
	if err := e.videoStore.SetReady(ctx, job.VideoID, result.durationSeconds); err != nil {
		jobLogger.Warn("failed to mark video ready", logging.Error(err))
	}

	if len(result.completed) > 0 {
		event := notifications.QualitiesCompletedEvent{
			VideoID:            job.VideoID,
			EventType:          notifications.EventQualitiesCompleted,
			Timestamp:          time.Now().UTC(),
			CompletedQualities: result.completed,
		}
		if err := e.notifier.PublishQualitiesCompleted(ctx, event); err != nil {
			// Delivery is best effort; the job stays completed.
			jobLogger.Warn("failed to publish completion event", logging.Error(err))
		}
	}

	e.cleanup(result.scratchDir, jobLogger)
	jobLogger.Info("encoding completed",
		logging.Float64("duration_seconds", result.durationSeconds),
		logging.Int("qualities", len(result.completed)))
	return nil
}

func (e *Encoder) settleFailure(ctx context.Context, job *queue.Job, pipelineErr error, jobLogger *slog.Logger) error {
	message := services.FailureMessage(pipelineErr)
	if ctx.Err() != nil {
		message = queue.ShutdownFailureReason
	}

	// The worker context may already be canceled; settle with a fresh one
	// so the failed state always lands.
	settleCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := e.store.Fail(settleCtx, job.ID, message); err != nil {
		jobLogger.Error("failed to settle job as failed", logging.Error(err))
		return fmt.Errorf("fail job %d: %w", job.ID, err)
	}
	if err := e.videoStore.SetStatus(settleCtx, job.VideoID, videos.StatusFailed); err != nil {
		jobLogger.Warn("failed to mark video failed", logging.Error(err))
	}
	e.cleanup(scratchDir(e.cfg, job.ID), jobLogger)
	jobLogger.Error("encoding failed", logging.String("reason", message), logging.Error(pipelineErr))
	return nil
}

// startHeartbeat stamps the job heartbeat until the returned stop function
// is called.
func (e *Encoder) startHeartbeat(ctx context.Context, jobID int64, jobLogger *slog.Logger) func() {
	interval := time.Duration(e.cfg.Workflow.HeartbeatInterval) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := e.store.UpdateHeartbeat(ctx, jobID); err != nil {
					jobLogger.Warn("heartbeat write failed", logging.Error(err))
				}
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}

func (e *Encoder) cleanup(dir string, jobLogger *slog.Logger) {
	if !e.cfg.Encoding.CleanupEnabled || dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		jobLogger.Warn("failed to remove scratch directory",
			logging.String("dir", dir), logging.Error(err))
	}
}

func scratchDir(cfg *config.Config, jobID int64) string {
	return filepath.Join(cfg.Paths.ScratchDir, fmt.Sprintf("job-%d", jobID))
}

func inputFileName(originalFilename string) string {
	name := strings.TrimSpace(filepath.Base(originalFilename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "input.mp4"
	}
	return "input_" + name
}
