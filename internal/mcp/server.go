// Package mcp provides a Model Context Protocol server for scout.
//
// It exposes the qualification dialogue and the component extraction as MCP
// tools, and the pattern library and live sessions as MCP resources. The
// server is transport-agnostic; cmd/scout serves it over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/scout/internal/graph"
	"github.com/hurttlocker/scout/internal/session"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Manager *session.Manager
	Version string // version string for MCP server info
}

// NewServer creates a configured MCP server with all scout tools and resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Scout",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerRespondTool(s, cfg.Manager)
	registerAnalyzeTool(s, cfg.Manager)
	registerGraphTool(s, cfg.Manager)
	registerPatternsTool(s, cfg.Manager)

	registerPatternsResource(s, cfg.Manager)
	registerSessionsResource(s, cfg.Manager)

	return s
}

// --- Tools ---

func registerRespondTool(s *server.MCPServer, m *session.Manager) {
	tool := mcp.NewTool("scout_respond",
		mcp.WithDescription("Send a visitor message to a qualification conversation and get the assistant's reply, the insights found, the dialogue state and the updated component graph. Omit session_id to start a new conversation."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("What the visitor said"),
		),
		mcp.WithString("session_id",
			mcp.Description("Conversation to continue. Empty = start a new one."),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcp.NewToolResultError("message is required"), nil
		}
		if strings.TrimSpace(message) == "" {
			return mcp.NewToolResultError("message cannot be empty"), nil
		}

		id := req.GetString("session_id", "")
		if id == "" {
			sess, err := m.Create(ctx)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("creating session: %v", err)), nil
			}
			id = sess.ID
		}

		turn, err := m.Respond(ctx, id, message)
		if errors.Is(err, session.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("session %q not found", id)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("respond error: %v", err)), nil
		}
		return jsonResult(turn), nil
	})
}

func registerAnalyzeTool(s *server.MCPServer, m *session.Manager) {
	tool := mcp.NewTool("scout_analyze",
		mcp.WithDescription("Extract the LLM clients, AI models and company resources mentioned in a text and return them as a network update plus the merged graph. Does not touch any conversation."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Free text to analyze"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}

		update, source := m.Analyze(ctx, text)
		lib := m.Library()
		merged := graph.MergeWith(lib, graph.SkeletonFor(lib), update)
		return jsonResult(map[string]interface{}{
			"update": update,
			"source": source,
			"graph":  graph.Export(merged),
		}), nil
	})
}

func registerGraphTool(s *server.MCPServer, m *session.Manager) {
	tool := mcp.NewTool("scout_graph",
		mcp.WithDescription("Return the component graph accumulated by a conversation, or the empty skeleton when no session_id is given."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("session_id",
			mcp.Description("Conversation whose graph to return. Empty = skeleton."),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := req.GetString("session_id", "")
		if id == "" {
			return jsonResult(graph.Export(graph.SkeletonFor(m.Library()))), nil
		}

		sess, err := m.Get(ctx, id)
		if errors.Is(err, session.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("session %q not found", id)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("graph error: %v", err)), nil
		}
		return jsonResult(graph.Export(sess.Graph())), nil
	})
}

func registerPatternsTool(s *server.MCPServer, m *session.Manager) {
	tool := mcp.NewTool("scout_patterns",
		mcp.WithDescription("List the component categories scout recognizes and the known products in each."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(map[string]interface{}{
			"categories": m.Library().Describe(),
		}), nil
	})
}

func jsonResult(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}
