// Package httpx adapts the external HTTP collaborator for script use.
// Responses wrap the decoded payload under a "data" key together with
// the status code; script code unwraps defensively.
package httpx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

// Caller is the network surface the engine suspends on for http_get and
// http_post statements.
type Caller interface {
	Get(ctx context.Context, url string, headers map[string]string) (map[string]any, error)
	Post(ctx context.Context, url string, headers map[string]string, body map[string]any) (map[string]any, error)
}

// Client is the default Caller on top of net/http.
type Client struct {
	http *http.Client
}

// New returns a Caller with the given timeout applied per request.
func New(timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req, headers)
}

func (c *Client) Post(ctx context.Context, url string, headers map[string]string, body map[string]any) (map[string]any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, headers)
}

func (c *Client) do(req *http.Request, headers map[string]string) (map[string]any, error) {
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var payload any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			// Non-JSON responses are still useful to scripts as text.
			payload = string(raw)
		}
	}

	return map[string]any{
		"data":   payload,
		"status": resp.StatusCode,
	}, nil
}
