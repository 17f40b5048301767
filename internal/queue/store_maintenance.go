package queue

import (
	"context"
	"fmt"
	"time"
)

// UpdateHeartbeat stamps the worker heartbeat on an in-flight job. Jobs that
// have left processing ignore the write.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := timestamp(time.Now())
	if _, err := s.execWithRetry(ctx,
		`UPDATE encoding_jobs SET last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND deleted_at IS NULL AND status = ?`,
		now, now, id, StatusProcessing); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// StaleProcessing returns processing jobs whose heartbeat has expired. Jobs
// claimed before a crash also qualify once their start time passes the
// cutoff without any heartbeat landing.
func (s *Store) StaleProcessing(ctx context.Context, cutoff time.Time) ([]*Job, error) {
	boundary := timestamp(cutoff)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM encoding_jobs
         WHERE status = ? AND deleted_at IS NULL
           AND ((last_heartbeat IS NOT NULL AND last_heartbeat < ?)
             OR (last_heartbeat IS NULL AND started_at IS NOT NULL AND started_at < ?))
         ORDER BY id`,
		StatusProcessing, boundary, boundary)
	if err != nil {
		return nil, fmt.Errorf("stale processing jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// FailStale settles every stale processing job with the sweep failure reason
// and returns the jobs it moved.
func (s *Store) FailStale(ctx context.Context, cutoff time.Time) ([]*Job, error) {
	stale, err := s.StaleProcessing(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	failed := make([]*Job, 0, len(stale))
	for _, job := range stale {
		moved, err := s.Fail(ctx, job.ID, SweepFailureReason)
		if err != nil {
			// Another worker settled the job between the scan and the
			// update; skip it and keep sweeping.
			continue
		}
		failed = append(failed, moved)
	}
	return failed, nil
}
