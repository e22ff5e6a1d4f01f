package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Endpoint paths served by the daemon.
const (
	PathGenerate   = "/api/videos/generate"
	PathRegenerate = "/api/videos/regenerate"
	PathProgress   = "/api/videos/progress"
	PathStatus     = "/api/videos/status"
	PathCancel     = "/api/videos/cancel"
	PathRuns       = "/api/runs"
	PathDaemon     = "/api/status"
)

// StatusError is a non-2xx reply from the daemon.
type StatusError struct {
	Code      int
	Message   string
	Folder    string
	RequestID string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("daemon returned %d: %s", e.Code, e.Message)
}

// IsConflict reports whether err means the lesson is already being generated.
func IsConflict(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusConflict
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound
}

// Client talks to the daemon's HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for the daemon bound at addr ("host:port" or a
// full URL). token may be empty.
func NewClient(addr, token string) *Client {
	base := strings.TrimRight(strings.TrimSpace(addr), "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: base,
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Generate starts a lesson.
func (c *Client) Generate(ctx context.Context, req LessonRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.do(ctx, http.MethodPost, PathGenerate, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Regenerate deletes a lesson's outputs and starts it again.
func (c *Client) Regenerate(ctx context.Context, req LessonRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.do(ctx, http.MethodPost, PathRegenerate, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Progress returns the current progress record.
func (c *Client) Progress(ctx context.Context, req LessonRequest) (*ProgressStatus, error) {
	var resp ProgressStatus
	if err := c.do(ctx, http.MethodPost, PathProgress, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status reports whether the final video exists.
func (c *Client) Status(ctx context.Context, req LessonRequest) (*VideoStatus, error) {
	var resp VideoStatus
	if err := c.do(ctx, http.MethodPost, PathStatus, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel stops an in-flight lesson.
func (c *Client) Cancel(ctx context.Context, req LessonRequest) (*CancelResponse, error) {
	var resp CancelResponse
	if err := c.do(ctx, http.MethodPost, PathCancel, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Runs lists active runs and stored statuses.
func (c *Client) Runs(ctx context.Context) (*RunsResponse, error) {
	var resp RunsResponse
	if err := c.do(ctx, http.MethodGet, PathRuns, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DaemonStatus retrieves daemon diagnostics.
func (c *Client) DaemonStatus(ctx context.Context) (*DaemonStatus, error) {
	var resp DaemonStatus
	if err := c.do(ctx, http.MethodGet, PathDaemon, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect to daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Code: resp.StatusCode}
		var apiErr ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil {
			statusErr.Message = apiErr.Error
			statusErr.Folder = apiErr.Folder
			statusErr.RequestID = apiErr.RequestID
		} else {
			statusErr.Message = strings.TrimSpace(string(data))
		}
		return statusErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
