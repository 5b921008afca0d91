// ABOUTME: Charm KV client wrapper for syncing consultation snapshots across machines
// ABOUTME: Stores one JSON payload per session with automatic SSH key auth
package charm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/charm/client"
	"github.com/charmbracelet/charm/kv"
	"github.com/harper/dermacheck/internal/models"
	"github.com/harper/dermacheck/internal/util"
)

// SessionPrefix namespaces consultation payloads in the KV store
const SessionPrefix = "session:"

// Sync retry policy
const (
	syncAttempts   = 3
	syncRetryDelay = 500 * time.Millisecond
)

// PayloadVersion is the snapshot layout version written to the KV store
const PayloadVersion = 1

// Config holds charm client configuration
type Config struct {
	Host     string
	DBName   string
	AutoSync bool
}

// DefaultConfig returns default configuration for charm client
func DefaultConfig() *Config {
	return &Config{
		Host:     "cloud.charm.sh",
		DBName:   "dermacheck",
		AutoSync: false,
	}
}

// SessionPayload is a consultation as stored in the KV store
type SessionPayload struct {
	Version int                  `json:"version"`
	Record  models.SessionRecord `json:"record"`
	Facts   []models.FactRecord  `json:"facts"`
}

// NewSessionPayload bundles a session record with its snapshot facts
func NewSessionPayload(rec models.SessionRecord, facts []models.FactRecord) SessionPayload {
	return SessionPayload{Version: PayloadVersion, Record: rec, Facts: facts}
}

// Validate checks the payload version and record
func (p SessionPayload) Validate() error {
	if p.Version != PayloadVersion {
		return fmt.Errorf("unsupported session payload version %d", p.Version)
	}
	return p.Record.Validate()
}

// Client wraps charm KV for snapshot sync
type Client struct {
	kv     *kv.KV
	config *Config
	mu     sync.Mutex
}

// NewClient creates a new charm client with the given config
func NewClient(cfg *Config) (*Client, error) {
	// Set CHARM_HOST before opening KV
	if err := os.Setenv("CHARM_HOST", cfg.Host); err != nil {
		return nil, fmt.Errorf("failed to set charm host: %w", err)
	}

	db, err := kv.OpenWithDefaults(cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to open charm kv: %w", err)
	}

	c := &Client{
		kv:     db,
		config: cfg,
	}

	// Pull remote data on startup
	if cfg.AutoSync {
		_ = db.Sync()
	}

	return c, nil
}

// Close closes the KV database
func (c *Client) Close() error {
	if c.kv != nil {
		err := c.kv.Close()
		c.kv = nil
		return err
	}
	return nil
}

// syncIfEnabled syncs to cloud after writes
func (c *Client) syncIfEnabled() {
	if c.config.AutoSync {
		_ = c.kv.Sync()
	}
}

// ID returns the charm user ID
func (c *Client) ID() (string, error) {
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return "", fmt.Errorf("failed to create charm client: %w", err)
	}
	return cc.ID()
}

// Sync manually triggers a sync with the cloud, retrying transient failures
func (c *Client) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return util.Retry(context.Background(), syncAttempts, syncRetryDelay, func(int) error {
		return c.kv.Sync()
	})
}

// PushSession stores a session payload
func (c *Client) PushSession(p SessionPayload) error {
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", p.Record.SessionID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := SessionKey(p.Record.SessionID)
	if err := c.kv.Set([]byte(key), data); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	c.syncIfEnabled()
	return nil
}

// PullSession retrieves a session payload
func (c *Client) PullSession(sessionID string) (SessionPayload, error) {
	c.mu.Lock()
	data, err := c.kv.Get([]byte(SessionKey(sessionID)))
	c.mu.Unlock()
	if err != nil {
		return SessionPayload{}, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return DecodePayload(data)
}

// DeleteSession removes a session payload
func (c *Client) DeleteSession(sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := SessionKey(sessionID)
	if err := c.kv.Delete([]byte(key)); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	c.syncIfEnabled()
	return nil
}

// ListSessionIDs returns the IDs of all synced sessions
func (c *Client) ListSessionIDs() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.kv.Keys()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	var ids []string
	for _, key := range keys {
		if id, ok := SessionIDFromKey(string(key)); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// DecodePayload parses and validates a stored session payload
func DecodePayload(data []byte) (SessionPayload, error) {
	if data == nil {
		return SessionPayload{}, fmt.Errorf("session payload is empty")
	}
	var p SessionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return SessionPayload{}, fmt.Errorf("failed to parse session payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return SessionPayload{}, err
	}
	return p, nil
}

// SessionKey generates a key for a session payload
func SessionKey(sessionID string) string {
	return SessionPrefix + sessionID
}

// SessionIDFromKey extracts the session ID from a payload key
func SessionIDFromKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, SessionPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
