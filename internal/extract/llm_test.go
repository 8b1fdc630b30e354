package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurttlocker/scout/internal/llm"
	"github.com/hurttlocker/scout/internal/patterns"
)

// newMockLLMServer answers every chat completion with content and counts
// requests.
func newMockLLMServer(t *testing.T, content string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-x",
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
	return srv, &calls
}

func newMockLLMServerWithStatusCode(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(`{"error":{"message":"upstream failure","type":"server_error"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGateway(t *testing.T, url string) llm.Gateway {
	t.Helper()
	gw, err := llm.NewGateway(llm.Config{Provider: "custom", BaseURL: url, APIKey: "test"})
	require.NoError(t, err)
	return gw
}

func TestBuildExtractionRequest(t *testing.T) {
	req := buildExtractionRequest(patterns.Default(), "gpt-4o-mini", "we use Jira")

	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.True(t, req.JSON)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.1, *req.Temperature, 1e-9)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)

	sys := req.Messages[0].Content
	assert.Contains(t, sys, "KNOWN IDENTIFIERS")
	assert.Contains(t, sys, `company_resources (category "Company Resources")`)
	assert.Contains(t, sys, "S/4HANA")
	assert.Contains(t, req.Messages[1].Content, "we use Jira")
}

func TestExtractWithGatewayOverHTTP(t *testing.T) {
	srv, calls := newMockLLMServer(t, "Here you go:\n<network_update>\n"+
		`{"llm_clients":[{"id":"Claude Desktop","size":16,"height":2}],"ai_models":[],"company_resources":[{"id":"Snowflake","size":18,"height":2,"details":{"region":"eu"}},{"id":"Oracle","size":16,"height":2}]}`+
		"\n</network_update>")

	u, dropped, err := extractWithGateway(context.Background(), newTestGateway(t, srv.URL), patterns.Default(), "gpt-4o-mini", "Claude Desktop against our Snowflake")
	require.NoError(t, err)
	assert.Equal(t, 1, *calls)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, []string{"Claude Desktop", "Snowflake"}, u.IDs())
	assert.Equal(t, 18.0, u.CompanyResources[0].Size)
	assert.Equal(t, "eu", u.CompanyResources[0].Details["region"])
}

func TestExtractWithGatewayDedups(t *testing.T) {
	srv, _ := newMockLLMServer(t, `{"company_resources":[{"id":"Jira","size":16,"height":2},{"id":"Jira","size":20,"height":2}]}`)

	u, dropped, err := extractWithGateway(context.Background(), newTestGateway(t, srv.URL), patterns.Default(), "m", "Jira")
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	require.Len(t, u.CompanyResources, 1)
	assert.Equal(t, 16.0, u.CompanyResources[0].Size)
}

func TestExtractWithGatewayRefilesByOwner(t *testing.T) {
	srv, _ := newMockLLMServer(t, `{"ai_models":[{"id":"Salesforce","size":16,"height":2}],"company_resources":[{"id":"Jira","size":16,"height":2}]}`)

	u, dropped, err := extractWithGateway(context.Background(), newTestGateway(t, srv.URL), patterns.Default(), "m", "Salesforce and Jira")
	require.NoError(t, err)
	assert.Equal(t, 0, dropped)
	assert.Empty(t, u.AIModels)
	require.Len(t, u.CompanyResources, 2)
	assert.Equal(t, "Salesforce", u.CompanyResources[0].ID)
	assert.Equal(t, "Jira", u.CompanyResources[1].ID)
}

func TestExtractWithGatewayErrors(t *testing.T) {
	t.Run("http error", func(t *testing.T) {
		srv := newMockLLMServerWithStatusCode(t, http.StatusBadRequest)
		_, _, err := extractWithGateway(context.Background(), newTestGateway(t, srv.URL), patterns.Default(), "m", "Jira")
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), "extraction request:"))
	})

	t.Run("prose only", func(t *testing.T) {
		srv, _ := newMockLLMServer(t, "I could not find anything.")
		_, _, err := extractWithGateway(context.Background(), newTestGateway(t, srv.URL), patterns.Default(), "m", "Jira")
		assert.ErrorIs(t, err, ErrNoUpdate)
	})

	t.Run("schema violation", func(t *testing.T) {
		srv, _ := newMockLLMServer(t, `{"company_resources":[{"id":"Jira","size":16,"height":"2"}]}`)
		_, _, err := extractWithGateway(context.Background(), newTestGateway(t, srv.URL), patterns.Default(), "m", "Jira")
		assert.ErrorIs(t, err, ErrInvalidUpdate)
	})
}

func TestPipelineFallsBackWhenServerFails(t *testing.T) {
	srv := newMockLLMServerWithStatusCode(t, http.StatusBadRequest)
	p := NewPipeline(WithGateway(newTestGateway(t, srv.URL), "m"))

	u, src := p.AnalyzeWithSource(context.Background(), "tickets live in ServiceNow and docs in Google Drive")
	assert.Equal(t, SourcePatterns, src)
	assert.Equal(t, []string{"ServiceNow", "Google Drive"}, u.IDs())
}
