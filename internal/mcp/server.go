package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rohankatakam/gitbuddy/internal/mcp/tools"
	"github.com/rohankatakam/gitbuddy/internal/models"
)

// Server exposes the commit resolver and streak reads as MCP tools
type Server struct {
	server *mcp.Server
	logger *slog.Logger
}

// NewServer registers the tools. A nil streak reader leaves the streak tool out.
func NewServer(version string, resolver tools.CommitResolver, creds models.Credentials, streak tools.StreakReader) *Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "gitbuddy", Version: version}, nil)
	logger := slog.Default().With("component", "mcp")

	latest := tools.NewLatestCommitTool(resolver, creds)
	mcp.AddTool(server, latest.Definition(), latest.Handle)
	logger.Debug("registered tool", "name", "latest_commit")

	if streak != nil {
		st := tools.NewStreakTool(streak)
		mcp.AddTool(server, st.Definition(), st.Handle)
		logger.Debug("registered tool", "name", "streak")
	}

	return &Server{server: server, logger: logger}
}

// Run serves over stdin/stdout until the client disconnects or ctx ends
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server started on stdio")
	return s.RunTransport(ctx, &mcp.StdioTransport{})
}

// RunTransport serves over t
func (s *Server) RunTransport(ctx context.Context, t mcp.Transport) error {
	return s.server.Run(ctx, t)
}

// Connect starts a session over t without blocking
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}
