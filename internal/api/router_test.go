package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurttlocker/scout/internal/graph"
	"github.com/hurttlocker/scout/internal/imagegen"
	"github.com/hurttlocker/scout/internal/observe"
	"github.com/hurttlocker/scout/internal/session"
)

func newTestServer(t *testing.T) (*httptest.Server, *observe.Collector) {
	t.Helper()
	metrics := observe.NewCollector()
	m := session.NewManager(session.Config{Metrics: metrics})
	srv := httptest.NewServer(NewRouter(Config{Manager: m, Metrics: metrics, Version: "test"}).Setup())
	t.Cleanup(srv.Close)
	return srv, metrics
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func createSession(t *testing.T, base string) CreateSessionResponse {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, base+"/api/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var out CreateSessionResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","version":"test","sessions":0}`, string(body))
}

func TestSessionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	created := createSession(t, srv.URL)
	assert.NotEmpty(t, created.SessionID)
	assert.NotEmpty(t, created.Opening)
	assert.Equal(t, 1, created.Round)
	assert.Equal(t, 5, created.TotalRounds)
	assert.Len(t, created.Graph.Nodes, 4)

	sessionURL := srv.URL + "/api/sessions/" + created.SessionID

	resp, body := doJSON(t, http.MethodPost, sessionURL+"/respond", RespondRequest{
		Message: "We store contracts in SharePoint and our audit prep takes 3 weeks.",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var turn map[string]any
	require.NoError(t, json.Unmarshal(body, &turn))
	assert.Equal(t, created.SessionID, turn["session_id"])
	assert.Equal(t, "fallback", turn["selected_model"])
	assert.Equal(t, "patterns", turn["extraction_source"])
	assert.NotEmpty(t, turn["system_response"])
	assert.Contains(t, turn, "dialogue_state")
	assert.Contains(t, turn, "next_theme")

	resp, body = doJSON(t, http.MethodGet, sessionURL+"/graph", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var exported graph.ExportResult
	require.NoError(t, json.Unmarshal(body, &exported))
	assert.EqualValues(t, 1, exported.Meta["leaves"])

	resp, body = doJSON(t, http.MethodGet, sessionURL, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view session.View
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, 2, view.Round)
	assert.NotEmpty(t, view.Insights)

	resp, body = doJSON(t, http.MethodPost, sessionURL+"/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, 1, view.Round)
	assert.Empty(t, view.Insights)

	resp, _ = doJSON(t, http.MethodDelete, sessionURL, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, sessionURL, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodDelete, sessionURL, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRespondValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createSession(t, srv.URL)
	url := srv.URL + "/api/sessions/" + created.SessionID + "/respond"

	resp, _ := doJSON(t, http.MethodPost, url, RespondRequest{Message: "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader("{not json"))
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/sessions/unknown/respond", RespondRequest{Message: "hi"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnalyze(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/analyze", AnalyzeRequest{
		Text: "Our SAP S/4HANA instance feeds a Snowflake warehouse.",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out AnalyzeResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "patterns", string(out.Source))
	assert.ElementsMatch(t, []string{"S/4HANA", "Snowflake"}, out.Update.IDs())
	assert.EqualValues(t, 2, out.Graph.Meta["leaves"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/analyze", AnalyzeRequest{Text: ""})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"llm_clients": []`)
}

func TestGraphRoutesMounted(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/graph/skeleton", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var skel graph.ExportResult
	require.NoError(t, json.Unmarshal(body, &skel))
	assert.Equal(t, graph.RootID, skel.Meta["root"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/graph/merge", map[string]any{
		"update": map[string]any{"ai_models": []map[string]any{{"id": "Mistral", "size": 16, "height": 2}}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"Mistral"`)
}

func TestPatterns(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/patterns", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Categories []struct {
			ID              string   `json:"id"`
			Kind            string   `json:"kind"`
			Implementations []string `json:"implementations"`
		} `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Categories, 3)
	assert.Equal(t, "llm_clients", out.Categories[0].Kind)
	assert.Contains(t, out.Categories[1].Implementations, "Claude")
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	createSession(t, srv.URL)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "scout_active_sessions 1")
	assert.Contains(t, string(body), "scout_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/analyze", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSessionImage(t *testing.T) {
	var got imagegen.Request
	imageSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(imagegen.Response{Status: imagegen.StatusCompleted, ImageURL: "https://img.example/x.png"})
	}))
	defer imageSrv.Close()

	m := session.NewManager(session.Config{})
	images := imagegen.NewClient(imagegen.Config{BaseURL: imageSrv.URL, Delay: -1})
	srv := httptest.NewServer(NewRouter(Config{Manager: m, Images: images}).Setup())
	defer srv.Close()

	created := createSession(t, srv.URL)
	url := srv.URL + "/api/sessions/" + created.SessionID
	doJSON(t, http.MethodPost, url+"/respond", RespondRequest{Message: "We use Jira and our budget is tight."})

	resp, body := doJSON(t, http.MethodPost, url+"/image", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), "https://img.example/x.png")
	assert.Equal(t, created.SessionID, got.ProfileID)
	assert.Contains(t, got.Description, "Jira")
	assert.Contains(t, got.Description, "budget")
}

func TestSessionImageNotConfigured(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createSession(t, srv.URL)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+created.SessionID+"/image", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
