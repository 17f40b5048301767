package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"clipstream/internal/config"
	"clipstream/internal/tasks"
)

// queueName is the asynq queue all encoding tasks flow through.
const queueName = "encoding"

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

// EncodeEnqueuer dispatches encode tasks. The workflow handlers depend on
// this narrow surface so tests can capture dispatches.
type EncodeEnqueuer interface {
	EnqueueEncode(ctx context.Context, jobID int64, delay time.Duration) error
}

// Dispatcher enqueues tasks onto the durable queue.
type Dispatcher struct {
	client *asynq.Client
}

// NewDispatcher builds a Dispatcher from configuration.
func NewDispatcher(cfg *config.Config) *Dispatcher {
	return &Dispatcher{client: asynq.NewClient(redisOpt(cfg))}
}

// EnqueueUploaded submits an upload intake event.
func (d *Dispatcher) EnqueueUploaded(ctx context.Context, payload tasks.UploadedPayload) error {
	task, err := tasks.NewVideoUploadedTask(payload)
	if err != nil {
		return err
	}
	// Retry bookkeeping lives in the job state machine, not in asynq.
	if _, err := d.client.EnqueueContext(ctx, task, asynq.Queue(queueName), asynq.MaxRetry(0)); err != nil {
		return fmt.Errorf("enqueue uploaded event for video %s: %w", payload.VideoID, err)
	}
	return nil
}

// EnqueueEncode submits a job dispatch, optionally delayed.
func (d *Dispatcher) EnqueueEncode(ctx context.Context, jobID int64, delay time.Duration) error {
	task, err := tasks.NewEncodeJobTask(jobID)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.Queue(queueName), asynq.MaxRetry(0)}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}
	if _, err := d.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue encode for job %d: %w", jobID, err)
	}
	return nil
}

// Close releases the dispatcher's Redis connection.
func (d *Dispatcher) Close() error {
	return d.client.Close()
}

var _ EncodeEnqueuer = (*Dispatcher)(nil)
