// Package webhook posts task-creation requests to the workflow endpoint
// (e.g. a Logic App HTTP trigger) that files issues on the agent's behalf.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const DefaultTimeout = 30 * time.Second

type Client struct {
	URL       string
	HTTP      *http.Client
	UserAgent string
}

// New returns a Client for url. A zero timeout uses DefaultTimeout.
func New(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		URL:       url,
		HTTP:      &http.Client{Timeout: timeout},
		UserAgent: "spec-planner",
	}
}

// Post sends payload as a JSON body and returns the response status code.
// Any HTTP response counts as delivered, whatever its status; err is non-nil
// only when no response was received. Post does not retry.
func (c *Client) Post(ctx context.Context, payload any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("webhook: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook: post: %w", err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
