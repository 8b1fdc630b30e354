package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigResolve(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "or-key")

	tests := []struct {
		name    string
		cfg     Config
		wantURL string
		wantKey string
		wantErr bool
	}{
		{"openrouter from env", Config{Provider: "openrouter"}, "https://openrouter.ai/api/v1", "or-key", false},
		{"ollama needs no key", Config{Provider: "ollama"}, "http://localhost:11434/v1", "", false},
		{"explicit key and url", Config{Provider: "openai", APIKey: "k", BaseURL: "http://proxy/v1"}, "http://proxy/v1", "k", false},
		{"empty provider defaults to openai and needs key", Config{}, "", "", true},
		{"custom needs url", Config{Provider: "custom", APIKey: "k"}, "", "", true},
		{"unknown provider", Config{Provider: "anthropic"}, "", "", true},
		{"negative retries", Config{Provider: "ollama", MaxRetries: -1}, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.Resolve()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, got.BaseURL)
			assert.Equal(t, tt.wantKey, got.APIKey)
			assert.Equal(t, DefaultTimeout, got.Timeout)
			assert.Equal(t, DefaultMinInterval, got.MinInterval)
		})
	}
}

func newMockCompletionServer(t *testing.T, content string) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	var seen []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		seen = append(seen, body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   body["model"],
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestOpenAIGatewayComplete(t *testing.T) {
	srv, seen := newMockCompletionServer(t, "  Hello there.  ")

	gw, err := NewGateway(Config{Provider: "custom", BaseURL: srv.URL, APIKey: "test"})
	require.NoError(t, err)
	assert.Equal(t, "custom", gw.Name())

	resp, err := gw.Complete(context.Background(), Request{
		Model: "gpt-4o-mini",
		Messages: []Message{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hello"},
			{Role: RoleUser, Content: "again"},
		},
		Temperature: Temperature(0.2),
		MaxTokens:   64,
		JSON:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", resp.Content)
	assert.Equal(t, "gpt-4o-mini", resp.Model)

	require.Len(t, *seen, 1)
	body := (*seen)[0]
	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.InDelta(t, 0.2, body["temperature"], 1e-9)
	assert.EqualValues(t, 64, body["max_tokens"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", msgs[2].(map[string]any)["role"])
	format, ok := body["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestOpenAIGatewayErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"unknown model","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	gw, err := NewGateway(Config{Provider: "custom", BaseURL: srv.URL, APIKey: "test"})
	require.NoError(t, err)

	_, err = gw.Complete(context.Background(), Request{Model: "nope", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusBadRequest, gwErr.StatusCode)
	assert.Contains(t, gwErr.Error(), "unknown model")
}

func TestOpenAIGatewayRejectsEmptyRequest(t *testing.T) {
	gw, err := NewGateway(Config{Provider: "ollama", Timeout: time.Second})
	require.NoError(t, err)

	_, err = gw.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	assert.Error(t, err)
	_, err = gw.Complete(context.Background(), Request{Model: "m"})
	assert.Error(t, err)
}

func TestGatewayErrorMessage(t *testing.T) {
	assert.Equal(t, "gateway error (status 502): upstream down", (&GatewayError{StatusCode: 502, Detail: "upstream down"}).Error())
	assert.Equal(t, "gateway error: timeout", (&GatewayError{Detail: "timeout"}).Error())
	cause := errors.New("dial tcp: refused")
	err := &GatewayError{Err: cause}
	assert.Equal(t, "gateway error: dial tcp: refused", err.Error())
	assert.ErrorIs(t, err, cause)
}
