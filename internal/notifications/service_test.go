package notifications_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"clipstream/internal/notifications"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestPublishQualitiesCompleted(t *testing.T) {
	mr, client := newTestRedis(t)
	service := notifications.NewStreamService(client, "video:qualities:completed", 100)

	event := notifications.QualitiesCompletedEvent{
		VideoID: "vid-1",
		CompletedQualities: []notifications.CompletedQuality{
			{
				QualityName:    "720p",
				Width:          1280,
				Height:         720,
				Bitrate:        2500,
				HLSPlaylistURL: "https://cdn.example.com/encoded/vid-1/720p/playlist.m3u8",
				S3Key:          "encoded/vid-1/720p/playlist.m3u8",
				FileSize:       4100,
				Status:         "COMPLETED",
			},
		},
	}
	if err := service.PublishQualitiesCompleted(context.Background(), event); err != nil {
		t.Fatalf("PublishQualitiesCompleted: %v", err)
	}

	entries, err := mr.Stream("video:qualities:completed")
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 stream entry, got %d", len(entries))
	}

	values := map[string]string{}
	for i := 0; i+1 < len(entries[0].Values); i += 2 {
		values[entries[0].Values[i]] = entries[0].Values[i+1]
	}
	if values["type"] != notifications.EventQualitiesCompleted {
		t.Fatalf("unexpected event type: %q", values["type"])
	}
	if values["videoId"] != "vid-1" {
		t.Fatalf("unexpected video id: %q", values["videoId"])
	}

	var decoded notifications.QualitiesCompletedEvent
	if err := json.Unmarshal([]byte(values["payload"]), &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.EventType != notifications.EventQualitiesCompleted {
		t.Fatalf("payload event type: %q", decoded.EventType)
	}
	if decoded.Timestamp.IsZero() || time.Since(decoded.Timestamp) > time.Minute {
		t.Fatalf("unexpected timestamp: %v", decoded.Timestamp)
	}
	if len(decoded.CompletedQualities) != 1 || decoded.CompletedQualities[0].QualityName != "720p" {
		t.Fatalf("unexpected qualities: %+v", decoded.CompletedQualities)
	}
}

func TestPublishFailsWhenRedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	service := notifications.NewStreamService(client, "video:qualities:completed", 100)
	mr.Close()

	err := service.PublishQualitiesCompleted(context.Background(), notifications.QualitiesCompletedEvent{
		VideoID: "vid-1",
	})
	if err == nil {
		t.Fatal("expected publish error when redis is unreachable")
	}
}

func TestNopServiceDropsEvents(t *testing.T) {
	service := notifications.NewNop()
	if err := service.PublishQualitiesCompleted(context.Background(), notifications.QualitiesCompletedEvent{}); err != nil {
		t.Fatalf("nop publish returned error: %v", err)
	}
}
