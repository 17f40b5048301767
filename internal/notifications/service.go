// Package notifications publishes pipeline lifecycle events to the Redis
// stream downstream services consume. Publishing is fire-and-forget: a
// delivery failure never changes a job's fate.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"clipstream/internal/config"
)

// EventQualitiesCompleted is the event type emitted when every rendition of
// a video has been encoded and uploaded.
const EventQualitiesCompleted = "VIDEO_QUALITIES_COMPLETED"

// CompletedQuality describes one finished rendition inside an event.
type CompletedQuality struct {
	QualityName    string `json:"qualityName"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Bitrate        int    `json:"bitrate"`
	HLSPlaylistURL string `json:"hlsPlaylistUrl"`
	S3Key          string `json:"s3Key"`
	FileSize       int64  `json:"fileSize"`
	Status         string `json:"status"`
}

// QualitiesCompletedEvent is the payload published when a job completes.
type QualitiesCompletedEvent struct {
	VideoID            string             `json:"videoId"`
	EventType          string             `json:"eventType"`
	Timestamp          time.Time          `json:"timestamp"`
	CompletedQualities []CompletedQuality `json:"completedQualities"`
}

// Service defines the notification surface exposed to workflow components.
type Service interface {
	PublishQualitiesCompleted(ctx context.Context, event QualitiesCompletedEvent) error
}

// NewService builds a Redis stream publisher from configuration. An empty
// stream name disables publishing.
func NewService(cfg *config.Config) Service {
	if cfg == nil || cfg.Redis.EventStream == "" {
		return noopService{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return NewStreamService(client, cfg.Redis.EventStream, cfg.Redis.StreamMaxLen)
}

// StreamService publishes events via XADD onto a capped Redis stream.
type StreamService struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewStreamService wraps an existing Redis client for publishing.
func NewStreamService(client *redis.Client, stream string, maxLen int64) *StreamService {
	if maxLen <= 0 {
		maxLen = 4096
	}
	return &StreamService{client: client, stream: stream, maxLen: maxLen}
}

func (s *StreamService) PublishQualitiesCompleted(ctx context.Context, event QualitiesCompletedEvent) error {
	if event.EventType == "" {
		event.EventType = EventQualitiesCompleted
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":    event.EventType,
			"videoId": event.VideoID,
			"payload": string(body),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish %s for video %s: %w", event.EventType, event.VideoID, err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (s *StreamService) Close() error {
	return s.client.Close()
}

type noopService struct{}

func (noopService) PublishQualitiesCompleted(context.Context, QualitiesCompletedEvent) error {
	return nil
}

// NewNop returns a Service that drops every event.
func NewNop() Service {
	return noopService{}
}

var _ Service = (*StreamService)(nil)
