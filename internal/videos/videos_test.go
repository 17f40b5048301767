package videos_test

import (
	"context"
	"errors"
	"testing"

	"clipstream/internal/testsupport"
	"clipstream/internal/videos"
)

func TestUpsertAndStatusFlow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	jobStore := testsupport.MustOpenStore(t, cfg)
	store := videos.NewStore(jobStore.DB())

	ctx := context.Background()
	record, err := store.Upsert(ctx, "vid-1", "user-1", "My Upload")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if record.Status != videos.StatusUploaded {
		t.Fatalf("expected uploaded status, got %s", record.Status)
	}

	if err := store.SetStatus(ctx, "vid-1", videos.StatusProcessing); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	// A repeated upload event refreshes metadata without resetting status.
	record, err = store.Upsert(ctx, "vid-1", "user-1", "Renamed Upload")
	if err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	if record.Title != "Renamed Upload" {
		t.Fatalf("expected refreshed title, got %q", record.Title)
	}
	if record.Status != videos.StatusProcessing {
		t.Fatalf("expected status preserved, got %s", record.Status)
	}

	if err := store.SetReady(ctx, "vid-1", 132.5); err != nil {
		t.Fatalf("SetReady: %v", err)
	}
	record, err = store.Get(ctx, "vid-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Status != videos.StatusReady || record.DurationSeconds != 132.5 {
		t.Fatalf("unexpected ready record: %+v", record)
	}
}

func TestMissingVideo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	jobStore := testsupport.MustOpenStore(t, cfg)
	store := videos.NewStore(jobStore.DB())

	ctx := context.Background()
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, videos.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.SetStatus(ctx, "missing", videos.StatusFailed); !errors.Is(err, videos.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.SetReady(ctx, "missing", 10); !errors.Is(err, videos.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
