package tools

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/models"
)

// StreakReader reads streak state from the contract
type StreakReader interface {
	Account() string
	UserState(ctx context.Context, address string) (*models.UserStreak, error)
}

// StreakTool implements the streak tool
type StreakTool struct {
	reader StreakReader
}

// NewStreakTool creates the tool
func NewStreakTool(reader StreakReader) *StreakTool {
	return &StreakTool{reader: reader}
}

// Definition describes the tool to clients
func (t *StreakTool) Definition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "streak",
		Description: "Read the daily posting streak recorded on chain for an account (default: the configured account).",
	}
}

// Handle runs one call
func (t *StreakTool) Handle(ctx context.Context, req *mcp.CallToolRequest, in StreakInput) (*mcp.CallToolResult, StreakOutput, error) {
	address := in.Address
	if address == "" {
		address = t.reader.Account()
	}
	if address == "" {
		return nil, StreakOutput{}, toolError(apperrors.InvalidArgument("no address given and no account configured"))
	}

	state, err := t.reader.UserState(ctx, address)
	if err != nil {
		return nil, StreakOutput{}, toolError(err)
	}

	out := StreakOutput{Address: address, StreakCount: state.StreakCount}
	if !state.LastValidPostTime.IsZero() {
		out.LastValidPostTime = state.LastValidPostTime.UTC().Format(time.RFC3339)
	}
	return nil, out, nil
}
