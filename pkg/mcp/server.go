// Package mcp exposes the template engine and funnel compiler as MCP tools.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens-engine/pkg/mcp/tools"
	"github.com/sitelens/sitelens-engine/pkg/services"
)

// Server wraps the mcp-go MCPServer and owns tool registration.
type Server struct {
	mcp     *server.MCPServer
	version string
	logger  *zap.Logger
}

// NewServer creates a new MCP server instance.
func NewServer(name, version string, logger *zap.Logger) *Server {
	mcpServer := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
	)

	return &Server{
		mcp:     mcpServer,
		version: version,
		logger:  logger.Named("mcp"),
	}
}

// MCP returns the underlying MCPServer.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// RegisterTools registers the health, template and funnel tools.
func (s *Server) RegisterTools(templateService services.TemplateService, funnelService services.FunnelService) {
	tools.RegisterHealthTool(s.mcp, s.version)
	tools.RegisterTemplateTools(s.mcp, &tools.TemplateToolDeps{
		TemplateService: templateService,
		Logger:          s.logger,
	})
	tools.RegisterFunnelTools(s.mcp, &tools.FunnelToolDeps{
		FunnelService: funnelService,
		Logger:        s.logger,
	})
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}
