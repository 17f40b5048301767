package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clipstream/internal/config"
	"clipstream/internal/logging"
	"clipstream/internal/queue"
	"clipstream/internal/workflow"
)

// Server exposes job state and operator actions over HTTP. It binds to
// cfg.Paths.APIBind and optionally enforces a bearer token.
type Server struct {
	bind     string
	token    string
	store    *queue.Store
	enqueuer workflow.EncodeEnqueuer
	logger   *slog.Logger

	listener net.Listener
	server   *http.Server
}

// NewServer constructs the admin API server.
func NewServer(cfg *config.Config, store *queue.Store, enqueuer workflow.EncodeEnqueuer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		bind:     cfg.Paths.APIBind,
		token:    strings.TrimSpace(cfg.Paths.APIToken),
		store:    store,
		enqueuer: enqueuer,
		logger:   logging.WithComponent(logger, "api"),
	}
}

// Handler returns the routed (and, when configured, authenticated) handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/jobs", s.handleJobs)
	mux.HandleFunc("/api/jobs/", s.handleJobSubpath)
	if s.token == "" {
		return mux
	}
	return s.requireToken(mux)
}

// Start begins serving on the configured bind address. The listener shuts
// down when ctx is canceled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if s.listener != nil {
		return errors.New("api server already started")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.bind, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server terminated", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("addr", listener.Addr().String()))
	return nil
}

// Addr returns the bound listener address, useful when binding port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown", logging.Error(err))
	}
	s.server = nil
	s.listener = nil
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) != s.token {
			s.writeError(w, http.StatusUnauthorized, "missing or invalid API token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	summary, err := s.store.Summary(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, StatsFromSummary(summary))
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	statuses, err := parseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var jobs []*queue.Job
	if user := strings.TrimSpace(r.URL.Query().Get("user")); user != "" {
		jobs, err = s.store.ListByUser(r.Context(), user)
		if err == nil && len(statuses) > 0 {
			jobs = filterByStatus(jobs, statuses)
		}
	} else {
		jobs, err = s.store.List(r.Context(), statuses...)
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, JobListResponse{Jobs: ViewsFromJobs(jobs)})
}

func (s *Server) handleJobSubpath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if rest == "" {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	if videoID, ok := strings.CutPrefix(rest, "video/"); ok {
		s.handleJobByVideo(w, r, videoID)
		return
	}

	idPart, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	switch action {
	case "":
		s.handleJobByID(w, r, id)
	case "retry":
		s.handleJobRetry(w, r, id)
	case "cancel":
		s.handleJobCancel(w, r, id)
	default:
		s.writeError(w, http.StatusNotFound, "unknown job action")
	}
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	job, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, JobResponse{Job: ViewFromJob(job)})
}

func (s *Server) handleJobByVideo(w http.ResponseWriter, r *http.Request, videoID string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	videoID = strings.TrimSpace(videoID)
	if videoID == "" || strings.Contains(videoID, "/") {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	job, err := s.store.GetByVideoID(r.Context(), videoID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, JobResponse{Job: ViewFromJob(job)})
}

// handleJobRetry parks a failed job for retry and queues an encode task for
// it. Jobs already parked are re-dispatched without a state change.
func (s *Server) handleJobRetry(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	job, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	switch job.Status {
	case queue.StatusFailed:
		job, err = s.store.MarkRetry(r.Context(), id)
		if err != nil {
			if errors.Is(err, queue.ErrInvalidTransition) {
				s.writeError(w, http.StatusConflict, err.Error())
				return
			}
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	case queue.StatusRetry:
		// Already parked; just dispatch again.
	default:
		s.writeError(w, http.StatusConflict,
			fmt.Sprintf("job %d cannot be retried from status %s", id, job.Status))
		return
	}

	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueEncode(r.Context(), id, 0); err != nil {
			s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("queue encode task: %v", err))
			return
		}
	}
	s.logger.Info("job retry requested",
		logging.Int64("job_id", id),
		logging.String("video_id", job.VideoID))
	s.writeJSON(w, http.StatusOK, JobResponse{Job: ViewFromJob(job)})
}

func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.store.Cancel(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, queue.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, queue.ErrInvalidTransition):
			s.writeError(w, http.StatusConflict, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.logger.Info("job canceled", logging.Int64("job_id", id))
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}

func parseStatusFilter(raw string) ([]queue.Status, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	statuses := make([]queue.Status, 0, len(parts))
	for _, part := range parts {
		status, ok := queue.ParseStatus(part)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", strings.TrimSpace(part))
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func filterByStatus(jobs []*queue.Job, statuses []queue.Status) []*queue.Job {
	keep := make(map[queue.Status]struct{}, len(statuses))
	for _, status := range statuses {
		keep[status] = struct{}{}
	}
	filtered := make([]*queue.Job, 0, len(jobs))
	for _, job := range jobs {
		if _, ok := keep[job.Status]; ok {
			filtered = append(filtered, job)
		}
	}
	return filtered
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
