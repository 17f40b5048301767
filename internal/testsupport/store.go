package testsupport

import (
	"context"
	"testing"

	"clipstream/internal/config"
	"clipstream/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a pending job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, videoID string) *queue.Job {
	t.Helper()

	job, err := store.Create(context.Background(), queue.NewJobParams{
		VideoID:          videoID,
		UserID:           "user-1",
		Title:            "Test Video",
		OriginalFilename: "test.mp4",
		FileSize:         1 << 20,
		MimeType:         "video/mp4",
		SourceKey:        "uploads/" + videoID + "/test.mp4",
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return job
}

// StartJob advances a pending job into processing for tests.
func StartJob(t testing.TB, store *queue.Store, id int64) *queue.Job {
	t.Helper()

	job, err := store.Start(context.Background(), id)
	if err != nil {
		t.Fatalf("store.Start: %v", err)
	}
	return job
}
