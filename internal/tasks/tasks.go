// Package tasks defines the asynq task types the intake and encode workers
// exchange, along with their payload codecs.
package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// TypeVideoUploaded is enqueued by the upload surface when a new
	// source object lands in the store.
	TypeVideoUploaded = "video:uploaded"
	// TypeEncodeJob dispatches one claimed encoding job to a worker.
	TypeEncodeJob = "encode:job"
)

// UploadedPayload carries the upload attributes needed to create a job.
type UploadedPayload struct {
	VideoID          string `json:"videoId"`
	UserID           string `json:"userId"`
	Title            string `json:"title"`
	OriginalFilename string `json:"originalFilename"`
	FileSize         int64  `json:"fileSize"`
	MimeType         string `json:"mimeType"`
	S3Key            string `json:"s3Key"`
}

// Validate checks the fields a job cannot be created without.
func (p UploadedPayload) Validate() error {
	if strings.TrimSpace(p.VideoID) == "" {
		return errors.New("videoId is required")
	}
	if strings.TrimSpace(p.S3Key) == "" {
		return errors.New("s3Key is required")
	}
	return nil
}

// EncodePayload identifies the job a worker should encode.
type EncodePayload struct {
	JobID int64 `json:"jobId"`
}

// NewVideoUploadedTask builds the intake task for an uploaded video.
func NewVideoUploadedTask(payload UploadedPayload) (*asynq.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("uploaded payload: %w", err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal uploaded payload: %w", err)
	}
	return asynq.NewTask(TypeVideoUploaded, body), nil
}

// NewEncodeJobTask builds the dispatch task for a claimed job.
func NewEncodeJobTask(jobID int64) (*asynq.Task, error) {
	if jobID <= 0 {
		return nil, errors.New("job id is required")
	}
	body, err := json.Marshal(EncodePayload{JobID: jobID})
	if err != nil {
		return nil, fmt.Errorf("marshal encode payload: %w", err)
	}
	return asynq.NewTask(TypeEncodeJob, body), nil
}

// ParseUploadedPayload decodes and validates an intake task body.
func ParseUploadedPayload(data []byte) (UploadedPayload, error) {
	var payload UploadedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return UploadedPayload{}, fmt.Errorf("decode uploaded payload: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return UploadedPayload{}, err
	}
	return payload, nil
}

// ParseEncodePayload decodes a dispatch task body.
func ParseEncodePayload(data []byte) (EncodePayload, error) {
	var payload EncodePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return EncodePayload{}, fmt.Errorf("decode encode payload: %w", err)
	}
	if payload.JobID <= 0 {
		return EncodePayload{}, errors.New("jobId is required")
	}
	return payload, nil
}
