// ABOUTME: MCP command starts Model Context Protocol server
// ABOUTME: Lets LLM agents run consultations via stdio
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harper/dermacheck/internal/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs dermacheck as an MCP (Model Context Protocol) server, letting
LLM agents like Claude start consultations, relay questions to the
patient and read the ranked diagnoses via stdio.

Configure in Claude Desktop's config file to enable the tools.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by Claude Desktop)
  dermacheck mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "dermacheck": {
  #       "command": "dermacheck",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

// runMCP starts the MCP server
func runMCP(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}

	server := mcpserver.NewMCPServer("Dermacheck Symptom Checker", versionInfo.Version)
	mcp.RegisterTools(server, a.Service, logger)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("dermacheck MCP server starting on stdio", zap.String("explainer", a.ExplainerSource))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, closing storage")
		if err := a.Close(); err != nil {
			logger.Warn("error closing storage", zap.Error(err))
		}
	case err := <-serverErr:
		_ = a.Close()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	return nil
}
