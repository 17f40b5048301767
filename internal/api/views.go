package api

import (
	"time"

	"clipstream/internal/queue"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobView describes an encoding job in a transport-friendly format.
type JobView struct {
	ID               int64   `json:"id"`
	VideoID          string  `json:"videoId"`
	UserID           string  `json:"userId"`
	Title            string  `json:"title"`
	OriginalFilename string  `json:"originalFilename"`
	FileSize         int64   `json:"fileSize"`
	MimeType         string  `json:"mimeType"`
	SourceKey        string  `json:"sourceKey"`
	Status           string  `json:"status"`
	ErrorMessage     string  `json:"errorMessage,omitempty"`
	RetryCount       int     `json:"retryCount"`
	Progress         float64 `json:"progress"`
	StartedAt        string  `json:"startedAt,omitempty"`
	CompletedAt      string  `json:"completedAt,omitempty"`
	CreatedAt        string  `json:"createdAt,omitempty"`
	UpdatedAt        string  `json:"updatedAt,omitempty"`
	LastHeartbeat    string  `json:"lastHeartbeat,omitempty"`
}

// JobListResponse wraps a collection of jobs for API responses.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job JobView `json:"job"`
}

// StatsResponse provides aggregated job counts per lifecycle state.
type StatsResponse struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Retry      int `json:"retry"`
}

// HealthResponse reports daemon liveness.
type HealthResponse struct {
	Status string `json:"status"`
}

// ViewFromJob converts a stored job into its API representation.
func ViewFromJob(job *queue.Job) JobView {
	if job == nil {
		return JobView{}
	}
	return JobView{
		ID:               job.ID,
		VideoID:          job.VideoID,
		UserID:           job.UserID,
		Title:            job.Title,
		OriginalFilename: job.OriginalFilename,
		FileSize:         job.FileSize,
		MimeType:         job.MimeType,
		SourceKey:        job.SourceKey,
		Status:           string(job.Status),
		ErrorMessage:     job.ErrorMessage,
		RetryCount:       job.RetryCount,
		Progress:         job.Progress,
		StartedAt:        formatTimestamp(job.StartedAt),
		CompletedAt:      formatTimestamp(job.CompletedAt),
		CreatedAt:        formatTime(job.CreatedAt),
		UpdatedAt:        formatTime(job.UpdatedAt),
		LastHeartbeat:    formatTimestamp(job.LastHeartbeat),
	}
}

// ViewsFromJobs converts a job slice, preserving order.
func ViewsFromJobs(jobs []*queue.Job) []JobView {
	if len(jobs) == 0 {
		return nil
	}
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, ViewFromJob(job))
	}
	return views
}

// StatsFromSummary converts aggregate counts into the API payload.
func StatsFromSummary(summary queue.StatsSummary) StatsResponse {
	return StatsResponse{
		Total:      summary.Total,
		Pending:    summary.Pending,
		Processing: summary.Processing,
		Completed:  summary.Completed,
		Failed:     summary.Failed,
		Retry:      summary.Retry,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateTimeFormat)
}

func formatTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
