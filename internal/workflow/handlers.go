package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"clipstream/internal/config"
	"clipstream/internal/encoding"
	"clipstream/internal/logging"
	"clipstream/internal/queue"
	"clipstream/internal/tasks"
	"clipstream/internal/videos"
)

// retryDispatchDelay spaces automatic retry attempts apart.
const retryDispatchDelay = 30 * time.Second

// Handlers implements the asynq task handlers for intake and encoding.
type Handlers struct {
	cfg        *config.Config
	store      *queue.Store
	videoStore *videos.Store
	encoder    *encoding.Encoder
	enqueuer   EncodeEnqueuer
	logger     *slog.Logger
}

// NewHandlers constructs the workflow task handlers.
func NewHandlers(
	cfg *config.Config,
	store *queue.Store,
	videoStore *videos.Store,
	encoder *encoding.Encoder,
	enqueuer EncodeEnqueuer,
	logger *slog.Logger,
) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		cfg:        cfg,
		store:      store,
		videoStore: videoStore,
		encoder:    encoder,
		enqueuer:   enqueuer,
		logger:     logging.WithComponent(logger, "workflow"),
	}
}

// HandleVideoUploaded creates a pending job for a fresh upload and
// dispatches it. Duplicate deliveries are absorbed: a video with an active
// job is left alone.
func (h *Handlers) HandleVideoUploaded(ctx context.Context, task *asynq.Task) error {
	payload, err := tasks.ParseUploadedPayload(task.Payload())
	if err != nil {
		// Malformed payloads never become valid; drop them.
		h.logger.Error("dropping malformed upload event", logging.Error(err))
		return nil
	}

	eventLogger := h.logger.With(logging.String(logging.FieldVideoID, payload.VideoID))
	if _, err := h.videoStore.Upsert(ctx, payload.VideoID, payload.UserID, payload.Title); err != nil {
		return err
	}

	job, err := h.store.Create(ctx, queue.NewJobParams{
		VideoID:          payload.VideoID,
		UserID:           payload.UserID,
		Title:            payload.Title,
		OriginalFilename: payload.OriginalFilename,
		FileSize:         payload.FileSize,
		MimeType:         payload.MimeType,
		SourceKey:        payload.S3Key,
	})
	if err != nil {
		if errors.Is(err, queue.ErrDuplicateJob) {
			eventLogger.Info("ignoring duplicate upload event")
			return nil
		}
		return err
	}

	eventLogger.Info("job created", logging.Int64(logging.FieldJobID, job.ID))
	if err := h.enqueuer.EnqueueEncode(ctx, job.ID, 0); err != nil {
		// The job stays pending; the sweep or an operator retry will
		// pick it up.
		eventLogger.Warn("failed to dispatch new job", logging.Error(err))
	}
	return nil
}

// HandleEncodeJob runs one dispatched job through the encoder and applies
// the automatic retry policy afterwards. The handler only errors on
// infrastructure faults; encode failures settle on the job.
func (h *Handlers) HandleEncodeJob(ctx context.Context, task *asynq.Task) error {
	payload, err := tasks.ParseEncodePayload(task.Payload())
	if err != nil {
		h.logger.Error("dropping malformed encode dispatch", logging.Error(err))
		return nil
	}

	jobLogger := h.logger.With(logging.Int64(logging.FieldJobID, payload.JobID))

	// A retry-parked job moves back to pending before the encoder claims it.
	if job, err := h.store.GetByID(ctx, payload.JobID); err != nil {
		return err
	} else if job == nil {
		jobLogger.Info("dispatch for missing job dropped")
		return nil
	} else if job.Status == queue.StatusRetry {
		if _, err := h.store.Retry(ctx, payload.JobID); err != nil && !errors.Is(err, queue.ErrInvalidTransition) {
			return err
		}
	}

	if err := h.encoder.Process(ctx, payload.JobID); err != nil {
		return err
	}

	return h.applyRetryPolicy(ctx, payload.JobID, jobLogger)
}

// applyRetryPolicy parks a freshly failed job for another attempt while
// budget remains.
func (h *Handlers) applyRetryPolicy(ctx context.Context, jobID int64, jobLogger *slog.Logger) error {
	job, err := h.store.GetByID(ctx, jobID)
	if err != nil || job == nil {
		return err
	}
	if !h.shouldAutoRetry(job) {
		return nil
	}

	if _, err := h.store.MarkRetry(ctx, job.ID); err != nil {
		if errors.Is(err, queue.ErrInvalidTransition) {
			return nil
		}
		return err
	}
	jobLogger.Info("job parked for automatic retry",
		logging.Int("retry_count", job.RetryCount),
		logging.Int("max_retries", h.cfg.Workflow.MaxRetries))
	if err := h.enqueuer.EnqueueEncode(ctx, job.ID, retryDispatchDelay); err != nil {
		jobLogger.Warn("failed to dispatch retry", logging.Error(err))
	}
	return nil
}

func (h *Handlers) shouldAutoRetry(job *queue.Job) bool {
	if !h.cfg.Workflow.AutoRetry {
		return false
	}
	if job.Status != queue.StatusFailed {
		return false
	}
	return job.RetryCount <= h.cfg.Workflow.MaxRetries
}
