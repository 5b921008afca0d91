// ABOUTME: Main entry point for the dermacheck MCP server with stdio transport
// ABOUTME: Loads config, opens storage and registers the consultation tools
package main

import (
	"fmt"
	"os"

	"github.com/harper/dermacheck/internal/app"
	"github.com/harper/dermacheck/internal/config"
	"github.com/harper/dermacheck/internal/logging"
	"github.com/harper/dermacheck/internal/mcp"
	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists (for API keys)
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if envErr != nil {
		logger.Debug("no .env file found", zap.Error(envErr))
	}
	if cfg.OpenAIKey == "" {
		logger.Info("OPENAI_API_KEY not set, explanations use the built-in template")
	}

	a, err := app.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	server := mcpserver.NewMCPServer("Dermacheck Symptom Checker", "0.1.0")
	mcp.RegisterTools(server, a.Service, logger)

	logger.Info("dermacheck MCP server starting on stdio", zap.String("db_path", a.Store.Path()))
	if err := mcpserver.ServeStdio(server); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
