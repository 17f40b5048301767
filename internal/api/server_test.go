package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clipstream/internal/config"
	"clipstream/internal/logging"
	"clipstream/internal/queue"
	"clipstream/internal/testsupport"
)

type captureEnqueuer struct {
	jobIDs []int64
	delays []time.Duration
}

func (c *captureEnqueuer) EnqueueEncode(_ context.Context, jobID int64, delay time.Duration) error {
	c.jobIDs = append(c.jobIDs, jobID)
	c.delays = append(c.delays, delay)
	return nil
}

func newTestServer(t *testing.T, cfg *config.Config, store *queue.Store, enqueuer *captureEnqueuer) *httptest.Server {
	t.Helper()
	srv := NewServer(cfg, store, enqueuer, logging.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestServerListsJobsWithStatusFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewJob(t, store, "video-a")
	jobB := testsupport.NewJob(t, store, "video-b")
	testsupport.StartJob(t, store, jobB.ID)

	ts := newTestServer(t, cfg, store, &captureEnqueuer{})
	client := NewClient(ts.URL, "")

	jobs, err := client.ListJobs(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}

	jobs, err = client.ListJobs(context.Background(), []queue.Status{queue.StatusProcessing}, "")
	if err != nil {
		t.Fatalf("ListJobs filtered: %v", err)
	}
	if len(jobs) != 1 || jobs[0].VideoID != "video-b" {
		t.Fatalf("unexpected filtered jobs: %+v", jobs)
	}
	if jobs[0].Status != string(queue.StatusProcessing) {
		t.Fatalf("unexpected status: %q", jobs[0].Status)
	}
}

func TestServerRejectsUnknownStatusFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ts := newTestServer(t, cfg, store, &captureEnqueuer{})

	resp, err := http.Get(ts.URL + "/api/jobs?status=bogus")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestServerGetJobByIDAndVideo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "video-a")

	ts := newTestServer(t, cfg, store, &captureEnqueuer{})
	client := NewClient(ts.URL, "")

	byID, err := client.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if byID.VideoID != "video-a" || byID.CreatedAt == "" {
		t.Fatalf("unexpected job view: %+v", byID)
	}

	byVideo, err := client.GetJobByVideo(context.Background(), "video-a")
	if err != nil {
		t.Fatalf("GetJobByVideo: %v", err)
	}
	if byVideo.ID != job.ID {
		t.Fatalf("expected job %d, got %d", job.ID, byVideo.ID)
	}

	_, err = client.GetJob(context.Background(), 9999)
	if !IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestServerRetryParksFailedJobAndDispatches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "video-a")
	testsupport.StartJob(t, store, job.ID)
	if _, err := store.Fail(context.Background(), job.ID, "encode crashed"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	enqueuer := &captureEnqueuer{}
	ts := newTestServer(t, cfg, store, enqueuer)
	client := NewClient(ts.URL, "")

	view, err := client.RetryJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("RetryJob: %v", err)
	}
	if view.Status != string(queue.StatusRetry) {
		t.Fatalf("expected retry status, got %q", view.Status)
	}
	if len(enqueuer.jobIDs) != 1 || enqueuer.jobIDs[0] != job.ID {
		t.Fatalf("expected encode dispatch for job %d, got %v", job.ID, enqueuer.jobIDs)
	}

	// A second retry re-dispatches without a state change.
	if _, err := client.RetryJob(context.Background(), job.ID); err != nil {
		t.Fatalf("second RetryJob: %v", err)
	}
	if len(enqueuer.jobIDs) != 2 {
		t.Fatalf("expected second dispatch, got %v", enqueuer.jobIDs)
	}
}

func TestServerRetryRejectsCompletedJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "video-a")
	testsupport.StartJob(t, store, job.ID)
	if _, err := store.Complete(context.Background(), job.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	enqueuer := &captureEnqueuer{}
	ts := newTestServer(t, cfg, store, enqueuer)

	resp, err := http.Post(ts.URL+"/api/jobs/1/retry", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if len(enqueuer.jobIDs) != 0 {
		t.Fatalf("unexpected dispatches: %v", enqueuer.jobIDs)
	}
}

func TestServerCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "video-a")

	ts := newTestServer(t, cfg, store, &captureEnqueuer{})
	client := NewClient(ts.URL, "")

	if err := client.CancelJob(context.Background(), job.ID); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	got, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Fatalf("expected canceled job to be hidden, got %+v", got)
	}

	// Processing jobs cannot be canceled.
	jobB := testsupport.NewJob(t, store, "video-b")
	testsupport.StartJob(t, store, jobB.ID)
	err = client.CancelJob(context.Background(), jobB.ID)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestServerStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewJob(t, store, "video-a")
	jobB := testsupport.NewJob(t, store, "video-b")
	testsupport.StartJob(t, store, jobB.ID)

	ts := newTestServer(t, cfg, store, &captureEnqueuer{})
	client := NewClient(ts.URL, "")

	stats, err := client.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 2 || stats.Pending != 1 || stats.Processing != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestServerRequiresTokenWhenConfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIToken = "secret"
	store := testsupport.MustOpenStore(t, cfg)

	ts := newTestServer(t, cfg, store, &captureEnqueuer{})

	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	client := NewClient(ts.URL, "secret")
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health with token: %v", err)
	}
}

func TestServerHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ts := newTestServer(t, cfg, store, &captureEnqueuer{})

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var payload HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Status != "ok" {
		t.Fatalf("unexpected health payload: %+v", payload)
	}
}
