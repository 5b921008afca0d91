// ABOUTME: Centralized configuration for the dermacheck front ends
// ABOUTME: Loads from environment variables with validation and defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Config holds all configuration for dermacheck
type Config struct {
	// Storage settings
	DBPath        string
	KnowledgeFile string

	// Engine settings
	MaxCycles int
	LogLevel  string

	// HTTP settings
	HTTPAddr string

	// Session cache settings
	SessionCacheSize int
	SessionTTL       time.Duration

	// OpenAI settings
	OpenAIKey  string
	ChatModel  string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	// Charm settings
	CharmHost   string
	CharmDBName string
	AutoSync    bool
}

// DefaultDBPath returns the database location under the XDG data directory
func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, "dermacheck", "dermacheck.db")
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		// Defaults
		DBPath:           getEnv("DERMACHECK_DB_PATH", DefaultDBPath()),
		KnowledgeFile:    os.Getenv("DERMACHECK_KNOWLEDGE_FILE"),
		MaxCycles:        getEnvInt("DERMACHECK_MAX_CYCLES", 10000),
		LogLevel:         strings.ToLower(getEnv("DERMACHECK_LOG_LEVEL", "info")),
		HTTPAddr:         getEnv("DERMACHECK_HTTP_ADDR", ":8080"),
		SessionCacheSize: getEnvInt("DERMACHECK_SESSION_CACHE_SIZE", 256),
		SessionTTL:       getEnvDuration("DERMACHECK_SESSION_TTL", 30*time.Minute),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		ChatModel:        getEnv("DERMACHECK_OPENAI_MODEL", "gpt-4o-mini"),
		Timeout:          getEnvDuration("DERMACHECK_LLM_TIMEOUT", 30*time.Second),
		MaxRetries:       getEnvInt("DERMACHECK_LLM_MAX_RETRIES", 3),
		RetryDelay:       getEnvDuration("DERMACHECK_LLM_RETRY_DELAY", time.Second),
		CharmHost:        getEnv("DERMACHECK_CHARM_HOST", "cloud.charm.sh"),
		CharmDBName:      getEnv("DERMACHECK_CHARM_DB", "dermacheck"),
		AutoSync:         getEnvBool("DERMACHECK_AUTO_SYNC", false),
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.MaxCycles < 1 {
		return fmt.Errorf("DERMACHECK_MAX_CYCLES must be positive, got %d", c.MaxCycles)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("DERMACHECK_LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if c.SessionCacheSize < 1 {
		return fmt.Errorf("DERMACHECK_SESSION_CACHE_SIZE must be positive, got %d", c.SessionCacheSize)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("DERMACHECK_SESSION_TTL must be positive, got %v", c.SessionTTL)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("DERMACHECK_LLM_MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
