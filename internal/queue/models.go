package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of an encoding job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRetry      Status = "retry"
)

// SweepFailureReason is the error message set when a processing job loses
// its worker heartbeat and is failed by the sweep.
const SweepFailureReason = "worker heartbeat expired"

// ShutdownFailureReason is the error message set when jobs are failed because
// the daemon stopped mid-encode.
const ShutdownFailureReason = "daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusRetry,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// retryableStatuses are the states a retry request may act on.
var retryableStatuses = []Status{StatusFailed, StatusRetry}

// cancelableStatuses are the states a cancel request may act on.
var cancelableStatuses = []Status{StatusPending, StatusRetry}

// Job represents an encoding job persisted in SQLite.
type Job struct {
	ID               int64
	VideoID          string
	UserID           string
	Title            string
	OriginalFilename string
	FileSize         int64
	MimeType         string
	SourceKey        string
	Status           Status
	ErrorMessage     string
	RetryCount       int
	Progress         float64
	StartedAt        *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastHeartbeat    *time.Time
	DeletedAt        *time.Time
}

// NewJobParams carries the upload attributes recorded when a job is created.
type NewJobParams struct {
	VideoID          string
	UserID           string
	Title            string
	OriginalFilename string
	FileSize         int64
	MimeType         string
	SourceKey        string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsActive reports whether the job still owns its video: queued, in flight,
// or waiting for a retry.
func (j Job) IsActive() bool {
	switch j.Status {
	case StatusPending, StatusProcessing, StatusRetry:
		return j.DeletedAt == nil
	default:
		return false
	}
}

// IsTerminal reports whether the job reached a settled state.
func (j Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// IsRetryable reports whether a retry request may act on the job.
func (j Job) IsRetryable() bool {
	if j.DeletedAt != nil {
		return false
	}
	return j.Status == StatusFailed || j.Status == StatusRetry
}

// StatsSummary describes aggregated job counts per lifecycle state.
type StatsSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Retry      int
}
