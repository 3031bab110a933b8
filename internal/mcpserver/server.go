package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all SafeSentry tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("safesentry", "1.0.0")
	client := NewAPIClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolAnalyzeTransaction, h.HandleAnalyzeTransaction)
	s.AddTool(ToolListPending, h.HandleListPending)
	s.AddTool(ToolGetSafeInfo, h.HandleGetSafeInfo)
	s.AddTool(ToolGetReputation, h.HandleGetReputation)
	s.AddTool(ToolListAnalyses, h.HandleListAnalyses)

	return s
}
