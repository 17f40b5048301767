// Package videos persists the companion video records the encoding pipeline
// settles alongside each job. Records share the job database so both stores
// see one consistent file on disk.
package videos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a video record.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
	StatusDeleted    Status = "deleted"
)

// ErrNotFound indicates no video matches the identifier.
var ErrNotFound = errors.New("video not found")

// Record is a video row as the encoding service sees it.
type Record struct {
	ID              string
	UserID          string
	Title           string
	Status          Status
	DurationSeconds float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Store manages video records in the shared SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database connection. The schema is owned by the
// job store, which creates the videos table on first open.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Upsert records a video when its upload event arrives. An existing row
// keeps its status; only user and title refresh.
func (s *Store) Upsert(ctx context.Context, id, userID, title string) (*Record, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("video id is required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO videos (id, user_id, title, status, duration_seconds, created_at, updated_at)
         VALUES (?, ?, ?, ?, 0, ?, ?)
         ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id,
             title = excluded.title, updated_at = excluded.updated_at`,
		id, userID, title, StatusUploaded, now, now)
	if err != nil {
		return nil, fmt.Errorf("upsert video: %w", err)
	}
	return s.Get(ctx, id)
}

// Get fetches a video record by identifier.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, status, duration_seconds, created_at, updated_at
         FROM videos WHERE id = ?`, id)

	var (
		record     Record
		title      sql.NullString
		statusStr  string
		createdRaw string
		updatedRaw string
	)
	err := row.Scan(&record.ID, &record.UserID, &title, &statusStr,
		&record.DurationSeconds, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	record.Title = title.String
	record.Status = Status(statusStr)
	if created, parseErr := time.Parse(time.RFC3339Nano, createdRaw); parseErr == nil {
		record.CreatedAt = created
	}
	if updated, parseErr := time.Parse(time.RFC3339Nano, updatedRaw); parseErr == nil {
		record.UpdatedAt = updated
	}
	return &record, nil
}

// SetStatus moves a video to the given status.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE videos SET status = ?, updated_at = ? WHERE id = ?`,
		status, now, id)
	if err != nil {
		return fmt.Errorf("set video status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// SetReady marks a video as playable and records its duration.
func (s *Store) SetReady(ctx context.Context, id string, durationSeconds float64) error {
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE videos SET status = ?, duration_seconds = ?, updated_at = ? WHERE id = ?`,
		StatusReady, durationSeconds, now, id)
	if err != nil {
		return fmt.Errorf("set video ready: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
