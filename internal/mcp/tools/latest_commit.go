package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/models"
)

// CommitResolver finds the latest commit of an identity
type CommitResolver interface {
	ResolveLatestCommit(ctx context.Context, identity string, creds models.Credentials) (*models.ResolvedCommit, error)
}

// LatestCommitTool implements the latest_commit tool
type LatestCommitTool struct {
	resolver CommitResolver
	creds    models.Credentials
	logger   *slog.Logger
}

// NewLatestCommitTool creates the tool; creds is the server owner's GitHub token
func NewLatestCommitTool(resolver CommitResolver, creds models.Credentials) *LatestCommitTool {
	return &LatestCommitTool{
		resolver: resolver,
		creds:    creds,
		logger:   slog.Default().With("component", "mcp.latest_commit"),
	}
}

// Definition describes the tool to clients
func (t *LatestCommitTool) Definition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "latest_commit",
		Description: "Find the most recent commit, by author date, across every GitHub repository owned by the account behind an email address. Returns the commit with per-file diff stats and patches.",
	}
}

// Handle runs one call
func (t *LatestCommitTool) Handle(ctx context.Context, req *mcp.CallToolRequest, in LatestCommitInput) (*mcp.CallToolResult, LatestCommitOutput, error) {
	identity := strings.TrimSpace(in.Identity)
	t.logger.Debug("tool call", "identity_set", identity != "")

	result, err := t.resolver.ResolveLatestCommit(ctx, identity, t.creds)
	if err != nil {
		return nil, LatestCommitOutput{}, toolError(err)
	}
	return nil, toLatestCommitOutput(result), nil
}

// toolError keeps the kind visible to the calling agent
func toolError(err error) error {
	return fmt.Errorf("%s: %s", apperrors.KindOf(err), apperrors.UserMessage(err))
}
