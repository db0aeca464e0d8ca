package main

import (
	"log/slog"

	"github.com/rohankatakam/gitbuddy/internal/config"
	"github.com/rohankatakam/gitbuddy/internal/mcp"
	"github.com/rohankatakam/gitbuddy/internal/mcp/tools"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve GitBuddy tools to an MCP client over stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout exposing:

  latest_commit  most recent commit of an email address
  streak         on-chain streak of an address (when streak.rpc_url is set)

Logs go to ~/.gitbuddy/logs since stdout carries the protocol.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	if err := validate(config.ValidationContextResolve); err != nil {
		return err
	}
	creds, err := credentials()
	if err != nil {
		return err
	}

	var c closers
	defer c.Close()
	r, err := newResolver(&c)
	if err != nil {
		return err
	}

	var streak tools.StreakReader
	if cfg.Streak.RPCURL != "" && cfg.Streak.ContractAddress != "" {
		client, err := newStreakClient(&c, "")
		if err != nil {
			return err
		}
		streak = client
	}

	slog.Info("mcp server starting", "version", Version, "streak_tool", streak != nil)
	return mcp.NewServer(Version, r, creds, streak).Run(cmd.Context())
}
