package queue

import (
	"context"
	"fmt"
	"time"
)

// transition runs a guarded UPDATE whose WHERE clause restricts the states
// the edge may act on. Zero affected rows is resolved by re-reading the job:
// a missing or soft-deleted job yields ErrNotFound, anything else means the
// job is live but in a state outside the guard.
func (s *Store) transition(ctx context.Context, id int64, query string, args ...any) (*Job, error) {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		current, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: job %d is %s", ErrInvalidTransition, id, current.Status)
	}
	return s.GetByID(ctx, id)
}

// Start claims a pending job for encoding. It stamps started_at, seeds the
// heartbeat, and clears leftovers from any earlier attempt.
func (s *Store) Start(ctx context.Context, id int64) (*Job, error) {
	now := timestamp(time.Now())
	job, err := s.transition(ctx, id,
		`UPDATE encoding_jobs
         SET status = ?, started_at = ?, completed_at = NULL, progress = 0,
             error_message = NULL, last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND deleted_at IS NULL AND status = ?`,
		StatusProcessing, now, now, now, id, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("start job: %w", err)
	}
	return job, nil
}

// Complete settles a processing job as finished.
func (s *Store) Complete(ctx context.Context, id int64) (*Job, error) {
	now := timestamp(time.Now())
	job, err := s.transition(ctx, id,
		`UPDATE encoding_jobs
         SET status = ?, completed_at = ?, progress = 100, error_message = NULL,
             last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND deleted_at IS NULL AND status = ?`,
		StatusCompleted, now, now, id, StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("complete job: %w", err)
	}
	return job, nil
}

// Fail settles a processing job as failed, records the failure message, and
// bumps the retry counter.
func (s *Store) Fail(ctx context.Context, id int64, message string) (*Job, error) {
	now := timestamp(time.Now())
	job, err := s.transition(ctx, id,
		`UPDATE encoding_jobs
         SET status = ?, error_message = ?, retry_count = retry_count + 1,
             progress = 0, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND deleted_at IS NULL AND status = ?`,
		StatusFailed, nullableString(message), now, id, StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("fail job: %w", err)
	}
	return job, nil
}

// MarkRetry parks a failed job for automatic re-dispatch.
func (s *Store) MarkRetry(ctx context.Context, id int64) (*Job, error) {
	now := timestamp(time.Now())
	job, err := s.transition(ctx, id,
		`UPDATE encoding_jobs
         SET status = ?, updated_at = ?
         WHERE id = ? AND deleted_at IS NULL AND status = ?`,
		StatusRetry, now, id, StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("mark retry: %w", err)
	}
	return job, nil
}

// Retry moves a failed or retry-parked job back to pending, clearing the
// previous attempt's failure state. The retry counter is preserved.
func (s *Store) Retry(ctx context.Context, id int64) (*Job, error) {
	now := timestamp(time.Now())
	placeholders := makePlaceholders(len(retryableStatuses))
	args := []any{StatusPending, now, id}
	args = append(args, statusArgs(retryableStatuses)...)
	job, err := s.transition(ctx, id,
		`UPDATE encoding_jobs
         SET status = ?, progress = 0, error_message = NULL, started_at = NULL,
             completed_at = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND deleted_at IS NULL AND status IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("retry job: %w", err)
	}
	return job, nil
}

// Cancel soft-deletes a job that has not started encoding. Processing jobs
// cannot be canceled; settled jobs have nothing to cancel.
func (s *Store) Cancel(ctx context.Context, id int64) error {
	now := timestamp(time.Now())
	placeholders := makePlaceholders(len(cancelableStatuses))
	args := []any{now, now, id}
	args = append(args, statusArgs(cancelableStatuses)...)
	res, err := s.execWithRetry(ctx,
		`UPDATE encoding_jobs
         SET deleted_at = ?, updated_at = ?
         WHERE id = ? AND deleted_at IS NULL AND status IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		current, err := s.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("cancel job: %w: id %d", ErrNotFound, id)
		}
		return fmt.Errorf("cancel job: %w: job %d is %s", ErrInvalidTransition, id, current.Status)
	}
	return nil
}

// UpdateProgress records encode progress for an in-flight job. The value is
// clamped to [0, 100]; updates against jobs no longer processing are dropped
// silently so a racing worker cannot resurrect a settled job.
func (s *Store) UpdateProgress(ctx context.Context, id int64, percent float64) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	now := timestamp(time.Now())
	if _, err := s.execWithRetry(ctx,
		`UPDATE encoding_jobs SET progress = ?, updated_at = ?
         WHERE id = ? AND deleted_at IS NULL AND status = ?`,
		percent, now, id, StatusProcessing); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}
