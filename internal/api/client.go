package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"clipstream/internal/queue"
)

// Client talks to a running daemon's admin API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// StatusError carries the HTTP status and message of a failed API call.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.StatusCode)
}

// IsNotFound reports whether err is an API 404.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// NewClient constructs a client for the daemon at addr (host:port or URL).
func NewClient(addr, token string) *Client {
	base := strings.TrimSpace(addr)
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Health probes the daemon liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	var resp HealthResponse
	return c.do(ctx, http.MethodGet, "/api/health", nil, &resp)
}

// Stats fetches aggregate job counts.
func (c *Client) Stats(ctx context.Context) (StatsResponse, error) {
	var resp StatsResponse
	err := c.do(ctx, http.MethodGet, "/api/stats", nil, &resp)
	return resp, err
}

// ListJobs fetches jobs, optionally filtered by status and user.
func (c *Client) ListJobs(ctx context.Context, statuses []queue.Status, user string) ([]JobView, error) {
	params := url.Values{}
	if len(statuses) > 0 {
		parts := make([]string, 0, len(statuses))
		for _, status := range statuses {
			parts = append(parts, string(status))
		}
		params.Set("status", strings.Join(parts, ","))
	}
	if user = strings.TrimSpace(user); user != "" {
		params.Set("user", user)
	}
	path := "/api/jobs"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp JobListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// GetJob fetches a single job by id.
func (c *Client) GetJob(ctx context.Context, id int64) (JobView, error) {
	var resp JobResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/jobs/%d", id), nil, &resp)
	return resp.Job, err
}

// GetJobByVideo fetches the live job for a video.
func (c *Client) GetJobByVideo(ctx context.Context, videoID string) (JobView, error) {
	var resp JobResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs/video/"+url.PathEscape(videoID), nil, &resp)
	return resp.Job, err
}

// RetryJob asks the daemon to re-dispatch a failed job.
func (c *Client) RetryJob(ctx context.Context, id int64) (JobView, error) {
	var resp JobResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/jobs/%d/retry", id), nil, &resp)
	return resp.Job, err
}

// CancelJob asks the daemon to cancel a queued job.
func (c *Client) CancelJob(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/jobs/%d/cancel", id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Message: decodeErrorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeErrorMessage(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return ""
	}
	return payload.Error
}
