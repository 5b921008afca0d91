// ABOUTME: Serve command starts the HTTP JSON API
// ABOUTME: Runs until interrupted, then shuts down gracefully
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/harper/dermacheck/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveAddr string

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Serves the consultation API as JSON:

  POST   /api/sessions                 start a consultation
  GET    /api/sessions                 list consultations
  GET    /api/sessions/:id             pending question or result
  POST   /api/sessions/:id/answers     answer the pending question
  GET    /api/sessions/:id/diagnosis   ranked diagnoses (?explain=true)
  GET    /api/sessions/:id/firings     rule firing history
  DELETE /api/sessions/:id             delete a consultation
  GET    /health                       liveness and knowledge base summary`,
		RunE: runServe,
		Example: `  # Listen on the configured address (DERMACHECK_HTTP_ADDR, default :8080)
  dermacheck serve

  # Listen on a specific address
  dermacheck serve --addr 127.0.0.1:9000`,
	}

	cmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: DERMACHECK_HTTP_ADDR or :8080)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	addr := serveAddr
	if addr == "" {
		addr = a.Config.HTTPAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("dermacheck HTTP server starting",
		zap.String("addr", addr),
		zap.String("db_path", a.Store.Path()),
		zap.String("explainer", a.ExplainerSource))
	return server.NewServer(a.Service, logger).Run(ctx, addr)
}
