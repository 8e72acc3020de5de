// Package mcp exposes the knowledge base and escalation workflow to voice
// agents as Model Context Protocol tools.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/handoff/internal/escalation"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Service is the escalation surface the tools call. *escalation.Coordinator
// satisfies it.
type Service interface {
	Search(ctx context.Context, question string) (*escalation.SearchResponse, error)
	HandleUnknown(ctx context.Context, in escalation.CreateInput) (*escalation.HelpRequest, error)
	Get(ctx context.Context, id string) (*escalation.HelpRequest, error)
	ListPending(ctx context.Context) ([]escalation.HelpRequest, error)
}

// Server wraps an MCP server that exposes the agent tools.
type Server struct {
	svc Service
	mcp *server.MCPServer
}

// NewServer creates a new MCP server backed by svc.
func NewServer(svc Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"handoff",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(searchKnowledgeBaseTool, s.handleSearchKnowledgeBase)
	s.mcp.AddTool(requestHelpTool, s.handleRequestHelp)
	s.mcp.AddTool(getHelpRequestTool, s.handleGetHelpRequest)
	s.mcp.AddTool(listPendingRequestsTool, s.handleListPendingRequests)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
