// ABOUTME: Wires configuration, knowledge base, storage and explainer into a session service
// ABOUTME: Shared by the CLI, the HTTP server and the MCP server
package app

import (
	"fmt"

	"github.com/harper/dermacheck/internal/config"
	"github.com/harper/dermacheck/internal/knowledge"
	"github.com/harper/dermacheck/internal/llm"
	"github.com/harper/dermacheck/internal/service"
	"github.com/harper/dermacheck/internal/storage/sqlite"
	"go.uber.org/zap"
)

// App holds the long-lived components of a running front end
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Knowledge *knowledge.Base
	Store     *sqlite.Storage
	Service   *service.Service
	// ExplainerSource is service.SourceLLM when an OpenAI key is configured
	ExplainerSource string
}

// Open loads the knowledge base, opens the database and builds the service
func Open(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	kb, err := knowledge.Load(cfg.KnowledgeFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge base: %w", err)
	}

	store, err := sqlite.NewStorageWithPath(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	explainer, source := NewExplainer(cfg, logger)
	svc, err := service.New(kb, store,
		service.WithLogger(logger),
		service.WithMaxCycles(cfg.MaxCycles),
		service.WithCache(cfg.SessionCacheSize, cfg.SessionTTL),
		service.WithExplainer(explainer),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create session service: %w", err)
	}

	summary := kb.Summary()
	logger.Debug("application ready",
		zap.String("db_path", store.Path()),
		zap.Int("questions", summary.Questions),
		zap.Int("diseases", summary.Diseases),
		zap.String("explainer", source))

	return &App{
		Config:          cfg,
		Logger:          logger,
		Knowledge:       kb,
		Store:           store,
		Service:         svc,
		ExplainerSource: source,
	}, nil
}

// NewExplainer returns the OpenAI explainer when a key is configured and the
// template explainer otherwise
func NewExplainer(cfg *config.Config, logger *zap.Logger) (llm.Explainer, string) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OpenAIKey == "" {
		return llm.TemplateExplainer{}, service.SourceTemplate
	}
	client, err := llm.NewOpenAIClientWithConfig(&llm.ClientConfig{
		APIKey:     cfg.OpenAIKey,
		ChatModel:  cfg.ChatModel,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	})
	if err != nil {
		logger.Warn("failed to initialize OpenAI client, using template explanations", zap.Error(err))
		return llm.TemplateExplainer{}, service.SourceTemplate
	}
	return client, service.SourceLLM
}

// Close releases the service and the database
func (a *App) Close() error {
	a.Service.Close()
	return a.Store.Close()
}
