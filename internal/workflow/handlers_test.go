package workflow_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"clipstream/internal/config"
	"clipstream/internal/encoding"
	"clipstream/internal/logging"
	"clipstream/internal/notifications"
	"clipstream/internal/objectstore"
	"clipstream/internal/queue"
	"clipstream/internal/tasks"
	"clipstream/internal/testsupport"
	"clipstream/internal/transcode"
	"clipstream/internal/videos"
	"clipstream/internal/workflow"
)

// captureEnqueuer records encode dispatches instead of touching Redis.
type captureEnqueuer struct {
	mu       sync.Mutex
	jobIDs   []int64
	delays   []time.Duration
	failWith error
}

func (c *captureEnqueuer) EnqueueEncode(ctx context.Context, jobID int64, delay time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	c.jobIDs = append(c.jobIDs, jobID)
	c.delays = append(c.delays, delay)
	return nil
}

// okTranscoder produces placeholder artifacts for every rendition.
type okTranscoder struct{}

func (okTranscoder) Probe(ctx context.Context, inputPath string) (float64, error) {
	return 60, nil
}

func (okTranscoder) Encode(ctx context.Context, spec transcode.EncodeSpec, progress func(transcode.ProgressUpdate)) error {
	if err := os.MkdirAll(spec.OutputDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(spec.OutputDir, transcode.PlaylistName), []byte("#EXTM3U"), 0o644)
}

func (okTranscoder) Thumbnail(ctx context.Context, inputPath, outputPath string, offsetSeconds, width, height int) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outputPath, []byte("jpeg"), 0o644)
}

type handlerFixture struct {
	cfg        *config.Config
	store      *queue.Store
	videoStore *videos.Store
	objects    objectstore.Store
	enqueuer   *captureEnqueuer
	handlers   *workflow.Handlers
}

func newHandlerFixture(t *testing.T, opts ...testsupport.ConfigOption) *handlerFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	videoStore := videos.NewStore(store.DB())
	objects, err := objectstore.New(cfg)
	if err != nil {
		t.Fatalf("objectstore.New: %v", err)
	}
	enqueuer := &captureEnqueuer{}
	encoder := encoding.New(cfg, store, videoStore, objects, okTranscoder{},
		notifications.NewNop(), logging.NewNop())
	handlers := workflow.NewHandlers(cfg, store, videoStore, encoder, enqueuer, logging.NewNop())
	return &handlerFixture{
		cfg:        cfg,
		store:      store,
		videoStore: videoStore,
		objects:    objects,
		enqueuer:   enqueuer,
		handlers:   handlers,
	}
}

func uploadedTask(t *testing.T, videoID string) *asynq.Task {
	t.Helper()
	task, err := tasks.NewVideoUploadedTask(tasks.UploadedPayload{
		VideoID:          videoID,
		UserID:           "user-1",
		Title:            "Upload",
		OriginalFilename: "upload.mp4",
		FileSize:         1024,
		MimeType:         "video/mp4",
		S3Key:            "uploads/" + videoID + "/upload.mp4",
	})
	if err != nil {
		t.Fatalf("NewVideoUploadedTask: %v", err)
	}
	return task
}

func TestHandleVideoUploadedCreatesJobAndDispatches(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	if err := f.handlers.HandleVideoUploaded(ctx, uploadedTask(t, "vid-1")); err != nil {
		t.Fatalf("HandleVideoUploaded: %v", err)
	}

	job, err := f.store.GetByVideoID(ctx, "vid-1")
	if err != nil {
		t.Fatalf("GetByVideoID: %v", err)
	}
	if job == nil || job.Status != queue.StatusPending {
		t.Fatalf("expected pending job, got %#v", job)
	}
	record, err := f.videoStore.Get(ctx, "vid-1")
	if err != nil {
		t.Fatalf("videos.Get: %v", err)
	}
	if record.Status != videos.StatusUploaded {
		t.Fatalf("unexpected video status: %s", record.Status)
	}
	if len(f.enqueuer.jobIDs) != 1 || f.enqueuer.jobIDs[0] != job.ID {
		t.Fatalf("expected one dispatch for job %d, got %v", job.ID, f.enqueuer.jobIDs)
	}

	// A duplicate delivery is absorbed without a second job or dispatch.
	if err := f.handlers.HandleVideoUploaded(ctx, uploadedTask(t, "vid-1")); err != nil {
		t.Fatalf("duplicate HandleVideoUploaded: %v", err)
	}
	jobsForUser, err := f.store.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(jobsForUser) != 1 {
		t.Fatalf("expected 1 job after duplicate event, got %d", len(jobsForUser))
	}
	if len(f.enqueuer.jobIDs) != 1 {
		t.Fatalf("expected no dispatch for duplicate, got %v", f.enqueuer.jobIDs)
	}

	// Redelivery after the job has settled must not start a second encode.
	if _, err := f.store.Start(ctx, job.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := f.store.Complete(ctx, job.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := f.handlers.HandleVideoUploaded(ctx, uploadedTask(t, "vid-1")); err != nil {
		t.Fatalf("redelivered HandleVideoUploaded: %v", err)
	}
	jobsForUser, err = f.store.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(jobsForUser) != 1 {
		t.Fatalf("expected 1 job after settled redelivery, got %d", len(jobsForUser))
	}
	if len(f.enqueuer.jobIDs) != 1 {
		t.Fatalf("expected no dispatch for settled redelivery, got %v", f.enqueuer.jobIDs)
	}
}

func TestHandleVideoUploadedDropsMalformedPayloads(t *testing.T) {
	f := newHandlerFixture(t)
	task := asynq.NewTask(tasks.TypeVideoUploaded, []byte(`{"videoId":""}`))
	if err := f.handlers.HandleVideoUploaded(context.Background(), task); err != nil {
		t.Fatalf("expected malformed payload to be dropped, got %v", err)
	}
}

func TestHandleEncodeJobCompletesSeededJob(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	if err := f.handlers.HandleVideoUploaded(ctx, uploadedTask(t, "vid-run")); err != nil {
		t.Fatalf("HandleVideoUploaded: %v", err)
	}
	job, err := f.store.GetByVideoID(ctx, "vid-run")
	if err != nil || job == nil {
		t.Fatalf("GetByVideoID: %v %v", job, err)
	}

	src := filepath.Join(t.TempDir(), "upload.mp4")
	testsupport.WriteFile(t, src, 2048)
	if _, err := f.objects.UploadFile(ctx, job.SourceKey, src); err != nil {
		t.Fatalf("seed source: %v", err)
	}

	encodeTask, err := tasks.NewEncodeJobTask(job.ID)
	if err != nil {
		t.Fatalf("NewEncodeJobTask: %v", err)
	}
	if err := f.handlers.HandleEncodeJob(ctx, encodeTask); err != nil {
		t.Fatalf("HandleEncodeJob: %v", err)
	}

	settled, err := f.store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if settled.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", settled.Status, settled.ErrorMessage)
	}
}

func TestHandleEncodeJobAppliesAutoRetry(t *testing.T) {
	f := newHandlerFixture(t, testsupport.WithAutoRetry(true, 3))
	ctx := context.Background()

	// No source object seeded, so the encode fails.
	if err := f.handlers.HandleVideoUploaded(ctx, uploadedTask(t, "vid-retry")); err != nil {
		t.Fatalf("HandleVideoUploaded: %v", err)
	}
	job, err := f.store.GetByVideoID(ctx, "vid-retry")
	if err != nil || job == nil {
		t.Fatalf("GetByVideoID: %v %v", job, err)
	}
	dispatchesBefore := len(f.enqueuer.jobIDs)

	encodeTask, err := tasks.NewEncodeJobTask(job.ID)
	if err != nil {
		t.Fatalf("NewEncodeJobTask: %v", err)
	}
	if err := f.handlers.HandleEncodeJob(ctx, encodeTask); err != nil {
		t.Fatalf("HandleEncodeJob: %v", err)
	}

	parked, err := f.store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if parked.Status != queue.StatusRetry {
		t.Fatalf("expected job parked for retry, got %s", parked.Status)
	}
	if parked.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", parked.RetryCount)
	}
	if len(f.enqueuer.jobIDs) != dispatchesBefore+1 {
		t.Fatalf("expected retry dispatch, got %v", f.enqueuer.jobIDs)
	}
	if f.enqueuer.delays[len(f.enqueuer.delays)-1] <= 0 {
		t.Fatal("expected retry dispatch to be delayed")
	}

	// The retry dispatch moves the parked job through pending again.
	if err := f.handlers.HandleEncodeJob(ctx, encodeTask); err != nil {
		t.Fatalf("HandleEncodeJob retry: %v", err)
	}
	again, err := f.store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if again.Status != queue.StatusRetry {
		t.Fatalf("expected second failure parked again, got %s", again.Status)
	}
	if again.RetryCount != 2 {
		t.Fatalf("expected retry count 2, got %d", again.RetryCount)
	}
}

func TestHandleEncodeJobStopsRetryingWhenBudgetExhausted(t *testing.T) {
	f := newHandlerFixture(t, testsupport.WithAutoRetry(true, 1))
	ctx := context.Background()

	if err := f.handlers.HandleVideoUploaded(ctx, uploadedTask(t, "vid-exhaust")); err != nil {
		t.Fatalf("HandleVideoUploaded: %v", err)
	}
	job, err := f.store.GetByVideoID(ctx, "vid-exhaust")
	if err != nil || job == nil {
		t.Fatalf("GetByVideoID: %v %v", job, err)
	}
	encodeTask, err := tasks.NewEncodeJobTask(job.ID)
	if err != nil {
		t.Fatalf("NewEncodeJobTask: %v", err)
	}

	// Attempt 1 fails (retry_count 1 <= max 1, parked). Attempt 2 fails
	// (retry_count 2 > max 1, stays failed).
	for i := 0; i < 2; i++ {
		if err := f.handlers.HandleEncodeJob(ctx, encodeTask); err != nil {
			t.Fatalf("HandleEncodeJob attempt %d: %v", i+1, err)
		}
	}

	settled, err := f.store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if settled.Status != queue.StatusFailed {
		t.Fatalf("expected failed after budget exhausted, got %s", settled.Status)
	}
	if settled.RetryCount != 2 {
		t.Fatalf("expected retry count 2, got %d", settled.RetryCount)
	}
}

func TestHandleEncodeJobDropsMissingJobs(t *testing.T) {
	f := newHandlerFixture(t)
	encodeTask, err := tasks.NewEncodeJobTask(12345)
	if err != nil {
		t.Fatalf("NewEncodeJobTask: %v", err)
	}
	if err := f.handlers.HandleEncodeJob(context.Background(), encodeTask); err != nil {
		t.Fatalf("expected missing job dispatch to be dropped, got %v", err)
	}
}
