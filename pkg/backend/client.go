// Package backend provides the HTTP client for the product's backend routes
// (/api/...). Terminal actions of flows run through it as cancellable tasks.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const EndpointSubscriptionCreate = "/api/subscription/create"

var ErrMissingCheckoutURL = errors.New("checkout response has no url")

// HTTPError represents a non-2xx backend response.
type HTTPError struct {
	StatusCode int
	Body       string
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// UserMessage returns the error message reported by the backend, if any.
func (e *HTTPError) UserMessage() string {
	return e.Message
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds every request. The default is no timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

func NewClient(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.With("module", "backend_client"),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Post sends body as JSON to endpoint and decodes the JSON object response.
func (c *Client) Post(ctx context.Context, endpoint string, body any) (map[string]any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.DebugContext(ctx, "Failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newHTTPError(resp.StatusCode, respBody)
	}

	result := make(map[string]any)
	if len(bytes.TrimSpace(respBody)) == 0 {
		return result, nil
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return result, nil
}

func newHTTPError(status int, body []byte) *HTTPError {
	httpErr := &HTTPError{StatusCode: status, Body: string(body)}

	var decoded struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	if json.Unmarshal(body, &decoded) == nil {
		httpErr.Message = decoded.Error
		if httpErr.Message == "" {
			httpErr.Message = decoded.Message
		}
	}

	return httpErr
}

// Submit starts a POST in the background and returns its task. The request
// outlives ctx's cancellation; only Task.Cancel aborts it.
func (c *Client) Submit(ctx context.Context, endpoint string, payload map[string]any) *Task {
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	task := &Task{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(task.done)
		defer cancel()

		task.result, task.err = c.Post(taskCtx, endpoint, payload)
		if task.err != nil {
			c.logger.WarnContext(taskCtx, "Submission failed", "endpoint", endpoint, "error", task.err)
		}
	}()

	return task
}

// CreateCheckout starts a subscription checkout and returns the redirect URL.
func (c *Client) CreateCheckout(ctx context.Context, plan, period string) (string, error) {
	result, err := c.Post(ctx, EndpointSubscriptionCreate, map[string]any{
		"plan":   plan,
		"period": period,
	})
	if err != nil {
		return "", err
	}

	url, _ := result["url"].(string)
	if url == "" {
		return "", ErrMissingCheckoutURL
	}

	return url, nil
}
