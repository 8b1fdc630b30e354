package graph

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandler(nil, nil).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func decodeExport(t *testing.T, resp *http.Response) ExportResult {
	t.Helper()
	defer resp.Body.Close()
	var out ExportResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestSkeletonEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/skeleton")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeExport(t, resp)
	assert.Len(t, out.Nodes, 4)
	assert.EqualValues(t, 4, out.Meta["total_nodes"])
	assert.EqualValues(t, 0, out.Meta["leaves"])
}

func TestMergeEndpoint(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantLeaves float64
	}{
		{
			name:       "object update on skeleton",
			body:       `{"update":{"ai_models":[{"id":"GPT-4","size":16,"height":2},{"id":"Claude","size":16,"height":2}]}}`,
			wantStatus: http.StatusOK,
			wantLeaves: 2,
		},
		{
			name:       "tagged text update",
			body:       `{"update":"ok <network_update>{\"company_resources\":[{\"id\":\"Jira\",\"size\":16,\"height\":2}]}</network_update>"}`,
			wantStatus: http.StatusOK,
			wantLeaves: 1,
		},
		{
			name:       "explicit graph drops old leaves",
			body:       `{"graph":{"nodes":[{"id":"MCP Server","height":0,"size":32,"color":"#4F46E5"},{"id":"Old","height":2,"size":16,"color":"#F59E0B"}],"links":[]},"update":{"llm_clients":[]}}`,
			wantStatus: http.StatusOK,
			wantLeaves: 0,
		},
		{
			name:       "schema violation",
			body:       `{"update":{"ai_models":[{"id":"GPT-4","size":40,"height":2}]}}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "missing update",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not json",
			body:       `nope`,
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/merge", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			require.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus != http.StatusOK {
				resp.Body.Close()
				return
			}
			out := decodeExport(t, resp)
			assert.Equal(t, tt.wantLeaves, out.Meta["leaves"])
		})
	}
}

func TestMergeEndpointListsProblems(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/merge", "application/json",
		strings.NewReader(`{"update":{"ai_models":[{"id":"","size":5,"height":2}]}}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body struct {
		Error    string   `json:"error"`
		Problems []string `json:"problems"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "invalid network update", body.Error)
	assert.Len(t, body.Problems, 2)
}
