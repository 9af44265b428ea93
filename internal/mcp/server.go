package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/projectindex/internal/app"
)

const (
	// ServerName is the MCP server name
	ServerName = "projectindex"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp *server.MCPServer
	app *app.App
}

// NewServer creates a new MCP server instance over a wired application
func NewServer(a *app.App) *Server {
	s := &Server{
		mcp: server.NewMCPServer(ServerName, ServerVersion),
		app: a,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio and blocks until the client
// disconnects or ctx is done. The caller owns the application and closes it.
func (s *Server) Serve(ctx context.Context) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(reindexAllTool(), s.handleReindexAll)
	s.mcp.AddTool(checkStalenessTool(), s.handleCheckStaleness)
	s.mcp.AddTool(indexProjectTool(), s.handleIndexProject)
	s.mcp.AddTool(searchProjectsTool(), s.handleSearchProjects)
	s.mcp.AddTool(activateIndexTool(), s.handleActivateIndex)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
