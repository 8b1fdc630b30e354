package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/scout/internal/session"
	"github.com/hurttlocker/scout/internal/store"
)

// helper: a manager backed by an in-memory store and no gateway, so every
// turn takes the deterministic fallback path
func setupTestManager(t *testing.T) *session.Manager {
	t.Helper()
	st, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return session.NewManager(session.Config{Store: st})
}

func TestNewServer(t *testing.T) {
	srv := NewServer(ServerConfig{Manager: setupTestManager(t)})
	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
}

// callTool is a helper that invokes an MCP tool through a JSON-RPC message.
func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]interface{}) *mcplib.CallToolResult {
	t.Helper()

	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      name,
			"arguments": args,
		},
	}))

	respBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, string(respBytes))
	}
	if resp.Error != nil {
		t.Fatalf("JSON-RPC error: %d %s", resp.Error.Code, resp.Error.Message)
	}

	callResult := &mcplib.CallToolResult{IsError: resp.Result.IsError}
	for _, c := range resp.Result.Content {
		if c.Type == "text" {
			callResult.Content = append(callResult.Content, mcplib.NewTextContent(c.Text))
		}
	}
	return callResult
}

func readResource(t *testing.T, srv *server.MCPServer, uri string) string {
	t.Helper()

	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "resources/read",
		"params":  map[string]interface{}{"uri": uri},
	}))
	respBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var resp struct {
		Result struct {
			Contents []struct {
				URI  string `json:"uri"`
				Text string `json:"text"`
			} `json:"contents"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Result.Contents) == 0 {
		t.Fatalf("no contents for %s: %s", uri, string(respBytes))
	}
	return resp.Result.Contents[0].Text
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func getTextContent(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content found")
	return ""
}

func TestRespondToolStartsAndContinuesSession(t *testing.T) {
	srv := NewServer(ServerConfig{Manager: setupTestManager(t)})

	result := callTool(t, srv, "scout_respond", map[string]interface{}{
		"message": "We use Cursor and want it to read our Confluence pages.",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", getTextContent(t, result))
	}

	var turn struct {
		SessionID      string `json:"session_id"`
		SystemResponse string `json:"system_response"`
		Round          int    `json:"round"`
		Update         struct {
			LLMClients       []struct{ ID string } `json:"llm_clients"`
			CompanyResources []struct{ ID string } `json:"company_resources"`
		} `json:"update"`
	}
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &turn); err != nil {
		t.Fatalf("decoding turn: %v", err)
	}
	if turn.SessionID == "" || turn.SystemResponse == "" {
		t.Fatalf("turn missing session or response: %+v", turn)
	}
	if turn.Round != 1 {
		t.Errorf("round = %d, want 1", turn.Round)
	}
	if len(turn.Update.LLMClients) != 1 || turn.Update.LLMClients[0].ID != "Cursor" {
		t.Errorf("expected Cursor, got %+v", turn.Update.LLMClients)
	}
	if len(turn.Update.CompanyResources) != 1 || turn.Update.CompanyResources[0].ID != "Confluence" {
		t.Errorf("expected Confluence, got %+v", turn.Update.CompanyResources)
	}

	result = callTool(t, srv, "scout_respond", map[string]interface{}{
		"message":    "Budget is roughly $30k.",
		"session_id": turn.SessionID,
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", getTextContent(t, result))
	}
	if !strings.Contains(getTextContent(t, result), `"round": 2`) {
		t.Errorf("second turn should be round 2: %s", getTextContent(t, result))
	}

	result = callTool(t, srv, "scout_graph", map[string]interface{}{"session_id": turn.SessionID})
	if result.IsError {
		t.Fatalf("unexpected error: %s", getTextContent(t, result))
	}
	text := getTextContent(t, result)
	for _, id := range []string{"Cursor", "Confluence"} {
		if !strings.Contains(text, `"`+id+`"`) {
			t.Errorf("session graph missing %s", id)
		}
	}
}

func TestRespondToolErrors(t *testing.T) {
	srv := NewServer(ServerConfig{Manager: setupTestManager(t)})

	result := callTool(t, srv, "scout_respond", map[string]interface{}{})
	if !result.IsError {
		t.Error("expected error for missing message")
	}

	result = callTool(t, srv, "scout_respond", map[string]interface{}{"message": "  "})
	if !result.IsError {
		t.Error("expected error for blank message")
	}

	result = callTool(t, srv, "scout_respond", map[string]interface{}{"message": "hi", "session_id": "nope"})
	if !result.IsError {
		t.Error("expected error for unknown session")
	}
	if !strings.Contains(getTextContent(t, result), "not found") {
		t.Errorf("unexpected message: %s", getTextContent(t, result))
	}
}

func TestAnalyzeTool(t *testing.T) {
	srv := NewServer(ServerConfig{Manager: setupTestManager(t)})

	result := callTool(t, srv, "scout_analyze", map[string]interface{}{
		"text": "Our ServiceNow tickets and Google Drive docs should be reachable from Windsurf.",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", getTextContent(t, result))
	}

	var out struct {
		Source string `json:"source"`
		Graph  struct {
			Meta map[string]interface{} `json:"meta"`
		} `json:"graph"`
	}
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if out.Source != "patterns" {
		t.Errorf("source = %q, want patterns", out.Source)
	}
	if leaves, _ := out.Graph.Meta["leaves"].(float64); leaves != 3 {
		t.Errorf("leaves = %v, want 3", out.Graph.Meta["leaves"])
	}

	result = callTool(t, srv, "scout_analyze", map[string]interface{}{})
	if !result.IsError {
		t.Error("expected error for missing text")
	}
}

func TestGraphToolSkeleton(t *testing.T) {
	srv := NewServer(ServerConfig{Manager: setupTestManager(t)})

	result := callTool(t, srv, "scout_graph", map[string]interface{}{})
	if result.IsError {
		t.Fatalf("unexpected error: %s", getTextContent(t, result))
	}
	if !strings.Contains(getTextContent(t, result), `"total_nodes": 4`) {
		t.Errorf("skeleton should have 4 nodes: %s", getTextContent(t, result))
	}

	result = callTool(t, srv, "scout_graph", map[string]interface{}{"session_id": "missing"})
	if !result.IsError {
		t.Error("expected error for unknown session")
	}
}

func TestPatternsToolAndResources(t *testing.T) {
	m := setupTestManager(t)
	srv := NewServer(ServerConfig{Manager: m, Version: "1.2.3"})

	result := callTool(t, srv, "scout_patterns", nil)
	if result.IsError {
		t.Fatalf("unexpected error: %s", getTextContent(t, result))
	}
	text := getTextContent(t, result)
	for _, want := range []string{"LLM Clients", "AI Models", "Company Resources", "Salesforce"} {
		if !strings.Contains(text, want) {
			t.Errorf("patterns output missing %q", want)
		}
	}

	if got := readResource(t, srv, "scout://patterns"); !strings.Contains(got, "Snowflake") {
		t.Errorf("patterns resource missing Snowflake: %s", got)
	}

	sess, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}
	if got := readResource(t, srv, "scout://sessions"); !strings.Contains(got, sess.ID) {
		t.Errorf("sessions resource missing %s: %s", sess.ID, got)
	}
}
