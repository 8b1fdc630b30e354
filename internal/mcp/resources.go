package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/scout/internal/session"
)

const jsonMIME = "application/json"

func registerPatternsResource(s *server.MCPServer, m *session.Manager) {
	addJSONResource(s, "scout://patterns", "Pattern Library",
		"Component categories, their known products and display metadata.",
		func() any {
			return map[string]any{"categories": m.Library().Describe()}
		})
}

func registerSessionsResource(s *server.MCPServer, m *session.Manager) {
	addJSONResource(s, "scout://sessions", "Live Sessions",
		"Ids of the conversations currently held in memory.",
		func() any {
			ids := m.IDs()
			return map[string]any{"sessions": ids, "count": len(ids)}
		})
}

// addJSONResource registers a read-only resource whose body is built fresh on
// every read.
func addJSONResource(s *server.MCPServer, uri, name, desc string, build func() any) {
	res := mcp.NewResource(uri, name,
		mcp.WithResourceDescription(desc),
		mcp.WithMIMEType(jsonMIME),
	)
	s.AddResource(res, func(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		body, err := json.MarshalIndent(build(), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", uri, err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: jsonMIME, Text: string(body)},
		}, nil
	})
}
