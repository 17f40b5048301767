package queue

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, video_id, user_id, title, original_filename, file_size, mime_type, source_key, status, error_message, retry_count, progress, started_at, completed_at, created_at, updated_at, last_heartbeat, deleted_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id               int64
		videoID          string
		userID           string
		title            sql.NullString
		originalFilename sql.NullString
		fileSize         sql.NullInt64
		mimeType         sql.NullString
		sourceKey        string
		statusStr        string
		errorMessage     sql.NullString
		retryCount       sql.NullInt64
		progress         sql.NullFloat64
		startedRaw       sql.NullString
		completedRaw     sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		lastHeartbeatRaw sql.NullString
		deletedRaw       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&videoID,
		&userID,
		&title,
		&originalFilename,
		&fileSize,
		&mimeType,
		&sourceKey,
		&statusStr,
		&errorMessage,
		&retryCount,
		&progress,
		&startedRaw,
		&completedRaw,
		&createdRaw,
		&updatedRaw,
		&lastHeartbeatRaw,
		&deletedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:               id,
		VideoID:          videoID,
		UserID:           userID,
		Title:            title.String,
		OriginalFilename: originalFilename.String,
		FileSize:         fileSize.Int64,
		MimeType:         mimeType.String,
		SourceKey:        sourceKey,
		Status:           Status(statusStr),
		ErrorMessage:     errorMessage.String,
		RetryCount:       int(retryCount.Int64),
		Progress:         progress.Float64,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	job.StartedAt = parseNullableTime(startedRaw)
	job.CompletedAt = parseNullableTime(completedRaw)
	job.LastHeartbeat = parseNullableTime(lastHeartbeatRaw)
	job.DeletedAt = parseNullableTime(deletedRaw)
	return job, nil
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	parsed, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func statusArgs(statuses []Status) []any {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	return args
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
