// Package imagegen is the client for the external image-generation service
// that renders a visitor profile picture from a text description.
//
// The service contract is
//
//	POST {base}/generate  {"description": "...", "profileId": "..."}
//	-> {"status": "completed"|"error", "imageUrl": "..."}
//
// Calls are issued one at a time and retried a bounded number of times with
// a fixed delay.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Defaults for Config.
const (
	DefaultAttempts = 3
	DefaultDelay    = 2 * time.Second
	DefaultTimeout  = 60 * time.Second
)

// Response statuses.
const (
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Request is the body sent to the service.
type Request struct {
	Description string `json:"description"`
	ProfileID   string `json:"profileId"`
}

// Response is the service's answer.
type Response struct {
	Status   string `json:"status"`
	ImageURL string `json:"imageUrl,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ErrNotConfigured is returned when no service URL is set.
var ErrNotConfigured = errors.New("image service not configured")

// HTTPError represents an HTTP error with additional context.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Config holds client settings.
type Config struct {
	BaseURL  string
	Attempts int
	Delay    time.Duration // between attempts; negative means none
	Timeout  time.Duration
	Logger   *zap.Logger
}

// Client calls the image service.
type Client struct {
	endpoint string
	attempts int
	delay    time.Duration
	http     *http.Client
	logger   *zap.Logger

	mu sync.Mutex // one request in flight
}

// NewClient creates a client. An empty BaseURL yields a client whose
// Generate always returns ErrNotConfigured.
func NewClient(cfg Config) *Client {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	} else if cfg.Delay == 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	endpoint := ""
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		endpoint = base + "/generate"
	}
	return &Client{
		endpoint: endpoint,
		attempts: cfg.Attempts,
		delay:    cfg.Delay,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   cfg.Logger,
	}
}

// Configured reports whether a service URL is set.
func (c *Client) Configured() bool {
	return c.endpoint != ""
}

// Generate asks the service for an image. A response with status "error"
// counts as a failed attempt. The error of the last attempt is returned once
// all attempts are used up.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, fmt.Errorf("description is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		resp, err := c.attempt(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		c.logger.Warn("image generation attempt failed",
			zap.Int("attempt", attempt),
			zap.String("profile", req.ProfileID),
			zap.Error(err))

		if attempt == c.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.delay):
		}
	}
	return nil, fmt.Errorf("image generation failed after %d attempts: %w", c.attempts, lastErr)
}

func (c *Client) attempt(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: httpResp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	switch resp.Status {
	case StatusCompleted:
		if resp.ImageURL == "" {
			return nil, fmt.Errorf("completed response without imageUrl")
		}
		return &resp, nil
	case StatusError:
		msg := resp.Error
		if msg == "" {
			msg = "service reported an error"
		}
		return nil, errors.New(msg)
	default:
		return nil, fmt.Errorf("unexpected status %q", resp.Status)
	}
}
