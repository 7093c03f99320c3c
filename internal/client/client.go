// Package client talks to a scanhub server over its JSON API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/buemura/scanhub/pkg/types"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Fields     []types.FieldError
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return fmt.Sprintf("server returned %d: %s (%s)", e.StatusCode, e.Message, strings.Join(parts, "; "))
}

// Submission is the server's answer to a new scan.
type Submission struct {
	ID     int64           `json:"id"`
	Status types.JobStatus `json:"status"`
}

// ScanView is a job as returned by GET /api/scan/{id}. Vulnerabilities is
// only set when the caller owns the job.
type ScanView struct {
	types.ScanJob
	Vulnerabilities []types.Vulnerability `json:"vulnerabilities,omitempty"`
}

// Client is a session-aware API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL. Cookies set by login are
// kept for the lifetime of the client.
func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
	}, nil
}

// Login starts a session for username.
func (c *Client) Login(ctx context.Context, username, password string) (*types.User, error) {
	var user types.User
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/login", body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Submit queues a scan of targetURL.
func (c *Client) Submit(ctx context.Context, targetURL, scanType string) (*Submission, error) {
	var sub Submission
	body := map[string]string{"targetUrl": targetURL, "scanType": scanType}
	if err := c.do(ctx, http.MethodPost, "/api/scan", body, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Status fetches one scan.
func (c *Client) Status(ctx context.Context, id int64) (*ScanView, error) {
	var view ScanView
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/scan/%d", id), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// List returns the logged-in user's scans.
func (c *Client) List(ctx context.Context) ([]*types.ScanJob, error) {
	var list []*types.ScanJob
	if err := c.do(ctx, http.MethodGet, "/api/scans", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Wait polls a scan every interval until it reaches a terminal status.
func (c *Client) Wait(ctx context.Context, id int64, interval time.Duration) (*ScanView, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		view, err := c.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		if view.Status.IsTerminal() {
			return view, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body struct {
		Error  string             `json:"error"`
		Errors []types.FieldError `json:"errors"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Fields = body.Errors
	}
	return apiErr
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
