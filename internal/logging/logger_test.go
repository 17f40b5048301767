package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipstream/internal/logging"
	"clipstream/internal/services"
)

func TestConsoleFormatIncludesComponentAndFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "console",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logging.WithComponent(logger, "workflow").Info("job claimed",
		logging.Int64("job_id", 42),
		logging.String("quality", "720p"),
	)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := strings.TrimSpace(string(data))
	if !strings.Contains(line, "workflow: job claimed") {
		t.Fatalf("missing component prefix in %q", line)
	}
	if !strings.Contains(line, "job_id=42") || !strings.Contains(line, "quality=720p") {
		t.Fatalf("missing fields in %q", line)
	}
}

func TestConsoleLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{
		Level:       "warn",
		Format:      "console",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("quiet")
	logger.Warn("loud")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "quiet") {
		t.Fatalf("info record leaked through warn filter: %q", out)
	}
	if !strings.Contains(out, "loud") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestJSONFormatEmitsStandardKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("upload complete", logging.String("video_id", "vid-1"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("parse json log %q: %v", data, err)
	}
	if record["msg"] != "upload complete" {
		t.Fatalf("unexpected msg: %v", record["msg"])
	}
	if record["level"] != "info" {
		t.Fatalf("unexpected level: %v", record["level"])
	}
	if record["video_id"] != "vid-1" {
		t.Fatalf("unexpected video_id: %v", record["video_id"])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatal("missing ts key")
	}
}

func TestUnsupportedFormatRejected(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "plain"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestContextFieldsCarryJobAndVideoIDs(t *testing.T) {
	ctx := services.WithJobID(context.Background(), "7")
	ctx = services.WithVideoID(ctx, "vid-9")

	attrs := logging.ContextFields(ctx)
	found := map[string]bool{}
	for _, attr := range attrs {
		found[attr.Key] = true
	}
	if !found[logging.FieldJobID] || !found[logging.FieldVideoID] {
		t.Fatalf("expected job and video fields, got %v", attrs)
	}
}
