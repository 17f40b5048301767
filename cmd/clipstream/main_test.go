package main

import (
	"bytes"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"clipstream/internal/api"
	"clipstream/internal/logging"
	"clipstream/internal/queue"
	"clipstream/internal/testsupport"
)

type cliTestEnv struct {
	store   *queue.Store
	apiURL  string
	cfgPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	srv := api.NewServer(cfg, store, nil, logging.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	// Point --config at a path with no file so defaults are used.
	cfgPath := filepath.Join(t.TempDir(), "config.toml")

	return &cliTestEnv{store: store, apiURL: ts.URL, cfgPath: cfgPath}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()

	full := append([]string{"--addr", env.apiURL, "--config", env.cfgPath}, args...)
	root := newRootCommand()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(full)
	err := root.Execute()
	return buf.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, output)
	}
}

func TestJobsListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env, "jobs", "list")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "No jobs found")
}

func TestJobsListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	job := testsupport.NewJob(t, env.store, "video-a")

	out, err := runCLI(t, env, "jobs", "list")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "video-a")
	requireContains(t, out, "Pending")

	out, err = runCLI(t, env, "jobs", "show", "1")
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	requireContains(t, out, "Test Video")
	requireContains(t, out, "Status:     Pending")

	out, err = runCLI(t, env, "jobs", "show", "--video", job.VideoID)
	if err != nil {
		t.Fatalf("jobs show --video: %v", err)
	}
	requireContains(t, out, "video-a")
}

func TestJobsListStatusFilter(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewJob(t, env.store, "video-a")
	jobB := testsupport.NewJob(t, env.store, "video-b")
	testsupport.StartJob(t, env.store, jobB.ID)

	out, err := runCLI(t, env, "jobs", "list", "--status", "processing")
	if err != nil {
		t.Fatalf("jobs list filtered: %v", err)
	}
	requireContains(t, out, "video-b")
	if strings.Contains(out, "video-a") {
		t.Fatalf("pending job should be filtered out:\n%s", out)
	}

	if _, err := runCLI(t, env, "jobs", "list", "--status", "bogus"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestJobsCancel(t *testing.T) {
	env := setupCLITestEnv(t)
	job := testsupport.NewJob(t, env.store, "video-a")

	out, err := runCLI(t, env, "jobs", "cancel", "1")
	if err != nil {
		t.Fatalf("jobs cancel: %v", err)
	}
	requireContains(t, out, "Job 1 canceled")

	got, err := env.store.GetByID(t.Context(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Fatalf("expected canceled job to be hidden, got %+v", got)
	}

	out, err = runCLI(t, env, "jobs", "cancel", "42")
	if err != nil {
		t.Fatalf("jobs cancel missing: %v", err)
	}
	requireContains(t, out, "Job 42 not found")
}

func TestJobsRetry(t *testing.T) {
	env := setupCLITestEnv(t)
	job := testsupport.NewJob(t, env.store, "video-a")
	testsupport.StartJob(t, env.store, job.ID)
	if _, err := env.store.Fail(t.Context(), job.ID, "encode crashed"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	out, err := runCLI(t, env, "jobs", "retry", "1")
	if err != nil {
		t.Fatalf("jobs retry: %v", err)
	}
	requireContains(t, out, "queued for retry")

	got, err := env.store.GetByID(t.Context(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusRetry {
		t.Fatalf("expected retry status, got %s", got.Status)
	}
}

func TestStatsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewJob(t, env.store, "video-a")

	out, err := runCLI(t, env, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	requireContains(t, out, "Pending")
	requireContains(t, out, "Total")
}

func TestHealthCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env, "health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	requireContains(t, out, "Daemon healthy")
}
