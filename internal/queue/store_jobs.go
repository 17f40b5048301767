package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Create inserts a new pending job for an uploaded video. Any non-deleted
// job for the video, settled or not, blocks creation; a second create for
// the same video returns ErrDuplicateJob. This is what makes redelivered
// upload events a no-op. Only cancellation (soft delete) or an admin hard
// delete releases the video.
func (s *Store) Create(ctx context.Context, params NewJobParams) (*Job, error) {
	if strings.TrimSpace(params.VideoID) == "" {
		return nil, errors.New("video id is required")
	}
	if strings.TrimSpace(params.SourceKey) == "" {
		return nil, errors.New("source key is required")
	}

	now := timestamp(time.Now())
	query := `INSERT INTO encoding_jobs (
            video_id, user_id, title, original_filename, file_size, mime_type,
            source_key, status, retry_count, progress, created_at, updated_at
        ) SELECT ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?
        WHERE NOT EXISTS (
            SELECT 1 FROM encoding_jobs
            WHERE video_id = ? AND deleted_at IS NULL
        )`

	args := []any{
		params.VideoID,
		params.UserID,
		nullableString(params.Title),
		nullableString(params.OriginalFilename),
		params.FileSize,
		nullableString(params.MimeType),
		params.SourceKey,
		StatusPending,
		now,
		now,
		params.VideoID,
	}

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: video %s", ErrDuplicateJob, params.VideoID)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. Soft-deleted jobs are invisible.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM encoding_jobs WHERE id = ? AND deleted_at IS NULL`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// GetByVideoID returns the most recent live job for a video.
func (s *Store) GetByVideoID(ctx context.Context, videoID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM encoding_jobs
         WHERE video_id = ? AND deleted_at IS NULL ORDER BY id DESC LIMIT 1`, videoID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job by video: %w", err)
	}
	return job, nil
}

// List returns live jobs filtered by status set (or all jobs when no status
// is provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM encoding_jobs WHERE deleted_at IS NULL`
	orderClause := ` ORDER BY created_at, id`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		query := baseQuery + ` AND status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, statusArgs(statuses)...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListByUser returns a user's live jobs, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM encoding_jobs
         WHERE user_id = ? AND deleted_at IS NULL ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list jobs by user: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// NextPending returns the oldest pending job, or nil when the queue is drained.
func (s *Store) NextPending(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM encoding_jobs
         WHERE status = ? AND deleted_at IS NULL ORDER BY created_at, id LIMIT 1`, StatusPending)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending job: %w", err)
	}
	return job, nil
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats returns a count of live jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(1) FROM encoding_jobs WHERE deleted_at IS NULL GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Summary aggregates job state for diagnostic output.
func (s *Store) Summary(ctx context.Context) (StatsSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return StatsSummary{}, err
	}
	summary := StatsSummary{}
	for status, count := range stats {
		summary.Total += count
		switch status {
		case StatusPending:
			summary.Pending += count
		case StatusProcessing:
			summary.Processing += count
		case StatusCompleted:
			summary.Completed += count
		case StatusFailed:
			summary.Failed += count
		case StatusRetry:
			summary.Retry += count
		}
	}
	return summary, nil
}

// HardDelete removes a job row entirely. Intended for operator cleanup of
// soft-deleted or settled jobs.
func (s *Store) HardDelete(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM encoding_jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}
