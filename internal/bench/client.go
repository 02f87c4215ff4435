package bench

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

// Client is the HTTP transport for the gateway. Transient failures (network
// errors, 5xx) are retried with exponential backoff; domain failures (4xx)
// surface immediately as *APIError so callers can read the message.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	retries int
	backoff time.Duration
}

// NewClient builds a gateway client.
func NewClient(baseURL, apiKey string, timeout time.Duration, retries int, backoff time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	if backoff == 0 {
		backoff = 300 * time.Millisecond
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		retries: retries,
		backoff: backoff,
	}
}

// Do posts payload to an endpoint path and decodes the JSON reply into out.
// out may be nil when the caller only cares about success.
func (c *Client) Do(ctx context.Context, endpoint string, payload any, out any) error {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}

	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request for %s: %w", endpoint, err)
		}
		body = b
	}

	var lastErr error
	tries := c.retries + 1
	for attempt := 0; attempt < tries; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", endpoint, err)
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("%s: read body: %w", endpoint, readErr)
			} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				if out == nil || len(raw) == 0 {
					return nil
				}
				if err := json.Unmarshal(raw, out); err != nil {
					return fmt.Errorf("%s: decode response: %w", endpoint, err)
				}
				return nil
			} else {
				apiErr := &APIError{Endpoint: endpoint, Status: resp.StatusCode, Message: extractMessage(raw)}
				if resp.StatusCode < 500 {
					return apiErr
				}
				lastErr = apiErr
			}
		}

		if attempt < tries-1 {
			select {
			case <-time.After(c.backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

// extractMessage pulls the human-readable error text from a gateway reply,
// falling back to the raw body.
func extractMessage(raw []byte) string {
	var wrapper struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil {
		if wrapper.Error != "" {
			return wrapper.Error
		}
		if wrapper.Detail != "" {
			return wrapper.Detail
		}
	}
	return strings.TrimSpace(string(raw))
}
