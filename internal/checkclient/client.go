package checkclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError is a non-2xx response carrying the server's structured message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server returned status %d", e.StatusCode)
}

// Client is a thin HTTP client for the daemon's check endpoints.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a Client for the daemon at baseURL. An empty token sends
// no Authorization header.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Submit sends text for checking. The caller is responsible for rejecting
// blank text; this method just forwards to the server.
func (c *Client) Submit(ctx context.Context, text, provider string) (SubmissionOutcome, error) {
	var resp struct {
		Cached bool    `json:"cached"`
		Result *Record `json:"result"`
		JobID  int64   `json:"job_id"`
	}
	err := c.do(ctx, http.MethodPost, "/check", map[string]string{
		"text":     text,
		"provider": provider,
	}, &resp)
	if err != nil {
		return SubmissionOutcome{}, err
	}

	if resp.Cached {
		if resp.Result == nil {
			return SubmissionOutcome{}, fmt.Errorf("server reported a cache hit without a result")
		}
		result := Normalize(*resp.Result)
		return SubmissionOutcome{Cached: true, Result: &result}, nil
	}
	return SubmissionOutcome{JobID: resp.JobID}, nil
}

// JobStatus fetches the current snapshot of a job.
func (c *Client) JobStatus(ctx context.Context, jobID int64) (JobStatus, error) {
	var status JobStatus
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/check/jobs/%d", jobID), nil, &status)
	return status, err
}

// CancelJob asks the server to stop a job. Callers treat this as advisory.
func (c *Client) CancelJob(ctx context.Context, jobID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/check/jobs/%d/cancel", jobID), nil, nil)
}

// History fetches one page of persisted checks.
func (c *Client) History(ctx context.Context, page, perPage int) (HistoryPage, error) {
	var resp struct {
		Results    []Record `json:"results"`
		Pagination struct {
			Page       int `json:"page"`
			PerPage    int `json:"per_page"`
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		} `json:"pagination"`
	}
	path := fmt.Sprintf("/check/history?page=%d&per_page=%d", page, perPage)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return HistoryPage{}, err
	}
	return HistoryPage{
		Records:    resp.Results,
		Page:       resp.Pagination.Page,
		PerPage:    resp.Pagination.PerPage,
		Total:      resp.Pagination.Total,
		TotalPages: resp.Pagination.TotalPages,
	}, nil
}

// DeleteHistory removes one persisted check.
func (c *Client) DeleteHistory(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/check/history/%d", id), nil, nil)
}

// Providers returns the availability map of configured providers.
func (c *Client) Providers(ctx context.Context) (map[string]bool, error) {
	var resp struct {
		Providers map[string]bool `json:"providers"`
	}
	if err := c.do(ctx, http.MethodGet, "/check/providers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Providers, nil
}

// Health reports whether the daemon answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload); err == nil {
		apiErr.Message = payload.Error.Message
	}
	return apiErr
}
