// Package intake is the Go client for the Careform intake API. Embedding
// surfaces (the patient-facing web client, partner integrations) use it to
// start, auto-save, resume and submit form sessions.
package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// APIError is a non-2xx response from the intake API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("intake API error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)

	return ok && apiErr.StatusCode == http.StatusNotFound
}

// ClientOptions configures the intake API client.
type ClientOptions struct {
	// BaseURL is the API base URL, without the /v1 suffix.
	BaseURL string
	// RetryMax is the maximum number of retries (default: 3).
	RetryMax int
	// Timeout is the HTTP client timeout (default: 30 seconds).
	Timeout time.Duration
}

// Client is the intake API client. Public session routes need no credentials;
// only session ids, which are unguessable UUIDv7s.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// NewClient creates a client for the given base URL with default settings.
func NewClient(baseURL string) *Client {
	return NewClientWithOptions(ClientOptions{BaseURL: baseURL})
}

// NewClientWithOptions creates a client with custom options.
func NewClientWithOptions(opts ClientOptions) *Client {
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/v1")

	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryMax == 0 {
		opts.RetryMax = 3
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil

	return &Client{
		baseURL:    opts.BaseURL,
		httpClient: retryClient,
	}
}

// GetForm retrieves the public metadata and schema for a form slug.
func (c *Client) GetForm(ctx context.Context, slug string) (*FormMetadata, error) {
	var form FormMetadata
	if err := c.do(ctx, http.MethodGet, "/v1/forms/"+slug, nil, &form); err != nil {
		return nil, err
	}

	return &form, nil
}

// StartSession starts a new session for a form.
func (c *Client) StartSession(ctx context.Context, req *StartSessionRequest) (*StartSessionResponse, error) {
	var resp StartSessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// GetSession retrieves a stored session: answers, step and config snapshot.
func (c *Client) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	var session Session
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+id.String(), nil, &session); err != nil {
		return nil, err
	}

	return &session, nil
}

// UpdateSession persists an auto-save snapshot.
func (c *Client) UpdateSession(ctx context.Context, id uuid.UUID, req *UpdateSessionRequest) (*UpdateSessionResponse, error) {
	var resp UpdateSessionResponse
	if err := c.do(ctx, http.MethodPatch, "/v1/sessions/"+id.String(), req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// SubmitSession submits the final answers and returns the outcome. A REJECTED
// status arrives here, not as an error.
func (c *Client) SubmitSession(ctx context.Context, id uuid.UUID, req *SubmitSessionRequest) (*SubmitSessionResponse, error) {
	var resp SubmitSessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/"+id.String()+"/submit", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// do executes one API request, decoding a 2xx body into out and anything else
// into an APIError.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Error("Failed to close response body", "error", closeErr)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: problemDetail(data)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// problemDetail extracts the detail from an RFC 7807 body, falling back to
// the raw body.
func problemDetail(data []byte) string {
	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &problem); err == nil {
		if problem.Detail != "" {
			return problem.Detail
		}
		if problem.Title != "" {
			return problem.Title
		}
	}

	return string(data)
}
