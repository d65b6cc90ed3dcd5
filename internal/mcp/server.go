package mcp

import (
	"log"

	"github.com/mark3labs/mcp-go/server"

	"github.com/forgecrew/foreman/internal/engine"
)

// Server wraps the MCP server with the engine wired into every tool
type Server struct {
	mcpServer *server.MCPServer
	engine    *engine.Engine
	logger    *log.Logger
}

// NewServer registers all foreman tools on a stdio MCP server
func NewServer(eng *engine.Engine, version string, logger *log.Logger) *Server {
	mcpServer := server.NewMCPServer(
		"foreman",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	mcpServer.AddTool(createAdvanceItemTool(), handleAdvanceItem(eng, logger))
	mcpServer.AddTool(createCompleteTreeTool(), handleCompleteTree(eng, logger))
	mcpServer.AddTool(createGetBlockedItemsTool(), handleGetBlockedItems(eng, logger))
	mcpServer.AddTool(createGetNextItemTool(), handleGetNextItem(eng, logger))
	mcpServer.AddTool(createGetNextStatusTool(), handleGetNextStatus(eng, logger))
	mcpServer.AddTool(createGetContextTool(), handleGetContext(eng, logger))
	mcpServer.AddTool(createManageItemsTool(), handleManageItems(eng, logger))
	mcpServer.AddTool(createManageDependenciesTool(), handleManageDependencies(eng, logger))
	mcpServer.AddTool(createManageNotesTool(), handleManageNotes(eng, logger))
	mcpServer.AddTool(createQueryItemsTool(), handleQueryItems(eng, logger))
	mcpServer.AddTool(createQueryNotesTool(), handleQueryNotes(eng, logger))

	return &Server{mcpServer: mcpServer, engine: eng, logger: logger}
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout
func (s *Server) ServeStdio() error {
	s.logger.Printf("foreman MCP server listening on stdio")
	return server.ServeStdio(s.mcpServer)
}
