// Package syncclient keeps a client-side replica of a session in sync with the
// server, by polling snapshots or by following the push stream.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xiaot623/negarena/internal/domain"
)

// Wire types shared with the server.
type (
	SessionConfig        = domain.SessionConfig
	Snapshot             = domain.Snapshot
	Event                = domain.Event
	SessionSummary       = domain.SessionSummary
	StartSessionResponse = domain.StartSessionResponse
	ControlResponse      = domain.ControlResponse
	SessionFilter        = domain.SessionFilter
)

// APIError is a non-2xx response. It unwraps to the matching domain error so
// callers can use errors.Is with the server's sentinels.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return domain.ErrSessionNotFound
	case http.StatusConflict:
		return domain.ErrInvalidTransition
	case http.StatusBadRequest:
		return domain.ErrInvalidConfig
	case http.StatusForbidden:
		return domain.ErrAdmissionDenied
	default:
		return nil
	}
}

// Client is a typed HTTP client of the session API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Start creates a session.
func (c *Client) Start(ctx context.Context, cfg SessionConfig) (*StartSessionResponse, error) {
	var resp StartSessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", nil, cfg, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Get fetches a snapshot with the events after sinceStep.
func (c *Client) Get(ctx context.Context, id string, sinceStep int) (*Snapshot, error) {
	query := url.Values{}
	if sinceStep > 0 {
		query.Set("since", strconv.Itoa(sinceStep))
	}
	var snap Snapshot
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(id), query, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Client) Pause(ctx context.Context, id string) (*ControlResponse, error) {
	return c.control(ctx, id, "pause")
}

func (c *Client) Resume(ctx context.Context, id string) (*ControlResponse, error) {
	return c.control(ctx, id, "resume")
}

func (c *Client) Cancel(ctx context.Context, id string) (*ControlResponse, error) {
	return c.control(ctx, id, "cancel")
}

func (c *Client) control(ctx context.Context, id, action string) (*ControlResponse, error) {
	var resp ControlResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(id)+"/"+action, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List lists live sessions.
func (c *Client) List(ctx context.Context, filter SessionFilter) ([]SessionSummary, error) {
	query := url.Values{}
	if filter.Kind != "" {
		query.Set("kind", string(filter.Kind))
	}
	if filter.Status != "" {
		query.Set("status", string(filter.Status))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}
	var resp domain.ListSessionsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/sessions", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// Delete drops a finished session from the server's memory.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(id), nil, nil, nil)
}

// Archived fetches the archived final snapshot of a session.
func (c *Client) Archived(ctx context.Context, id string) (*Snapshot, error) {
	var snap Snapshot
	if err := c.do(ctx, http.MethodGet, "/v1/archive/"+url.PathEscape(id), nil, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListArchived lists archived sessions, most recently ended first.
func (c *Client) ListArchived(ctx context.Context, limit int) ([]SessionSummary, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var resp domain.ListSessionsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/archive", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		var apiErr domain.ErrorResponse
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
