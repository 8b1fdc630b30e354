// Package llm is the completion gateway adapter for scout.
//
// The gateway speaks the OpenAI chat-completions contract; any compatible
// endpoint (OpenAI, OpenRouter, Ollama, DeepSeek, a self-hosted proxy) works.
// Callers go through the Gateway interface so that the conversation engine
// and the extraction pipeline can run against a mock in tests.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Roles used in a transcript.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged transcript entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion call.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	JSON        bool      `json:"-"` // ask for a JSON object response
}

// Response is the first choice of a completion.
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

// Gateway is the interface for chat completions.
type Gateway interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	// Name returns a human-readable gateway name (e.g., "openrouter").
	Name() string
}

// ErrEmptyResponse is returned when the gateway answers without any choice.
var ErrEmptyResponse = errors.New("empty response from gateway")

// GatewayError is a failed completion with an optional detail string from
// the upstream service.
type GatewayError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *GatewayError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Detail != "":
		return fmt.Sprintf("gateway error (status %d): %s", e.StatusCode, e.Detail)
	case e.Detail != "":
		return "gateway error: " + e.Detail
	case e.Err != nil:
		return "gateway error: " + e.Err.Error()
	}
	return "gateway error"
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Temperature returns a pointer for Request.Temperature.
func Temperature(v float64) *float64 { return &v }

// Config holds gateway configuration.
type Config struct {
	Provider    string        // "openai", "openrouter", "ollama", "deepseek", "custom"
	BaseURL     string        // Optional URL override
	APIKey      string        // API key (empty = read from env)
	Timeout     time.Duration // per-request timeout
	MaxRetries  int           // retries inside the client for transient failures
	MinInterval time.Duration // minimum spacing between outbound calls
}

// Defaults for the gateway boundary.
const (
	DefaultTimeout     = 20 * time.Second
	DefaultMaxRetries  = 2
	DefaultMinInterval = time.Second
)

type preset struct {
	baseURL string
	keyEnv  string
}

var presets = map[string]preset{
	"openai":     {"https://api.openai.com/v1", "OPENAI_API_KEY"},
	"openrouter": {"https://openrouter.ai/api/v1", "OPENROUTER_API_KEY"},
	"ollama":     {"http://localhost:11434/v1", ""},
	"deepseek":   {"https://api.deepseek.com/v1", "DEEPSEEK_API_KEY"},
	"custom":     {"", "SCOUT_GATEWAY_API_KEY"},
}

// Resolve fills in provider defaults and validates the result.
func (c Config) Resolve() (Config, error) {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = "openai"
	}
	p, ok := presets[c.Provider]
	if !ok {
		return c, fmt.Errorf("unknown gateway provider: %q (supported: openai, openrouter, ollama, deepseek, custom)", c.Provider)
	}
	if c.BaseURL == "" {
		c.BaseURL = p.baseURL
	}
	if c.BaseURL == "" {
		return c, fmt.Errorf("provider %q requires a base URL", c.Provider)
	}
	if c.APIKey == "" && p.keyEnv != "" {
		c.APIKey = os.Getenv(p.keyEnv)
	}
	if c.APIKey == "" && c.Provider != "ollama" {
		return c, fmt.Errorf("provider %q requires an API key (set %s)", c.Provider, p.keyEnv)
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries < 0 {
		return c, fmt.Errorf("max retries cannot be negative")
	}
	if c.MinInterval <= 0 {
		c.MinInterval = DefaultMinInterval
	}
	return c, nil
}

// NewGateway creates the OpenAI-compatible gateway client for cfg.
func NewGateway(cfg Config) (Gateway, error) {
	resolved, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	return newOpenAIGateway(resolved), nil
}
