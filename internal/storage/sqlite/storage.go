// ABOUTME: Unified Storage layer that wraps all SQLite stores
// ABOUTME: Persists session records, snapshots and the firing audit log together
package sqlite

import (
	"fmt"
	"sync"

	"github.com/harper/dermacheck/internal/models"
)

// Storage manages all persistent consultation data using SQLite
type Storage struct {
	db       *DB
	sessions *SessionStore
	facts    *FactStore
	firings  *FiringStore
	mu       sync.RWMutex
}

// NewStorage initializes storage with SQLite backend
func NewStorage() (*Storage, error) {
	return NewStorageWithPath(DefaultDBPath())
}

// NewStorageWithPath initializes storage with a custom database path
func NewStorageWithPath(dbPath string) (*Storage, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newStorage(db), nil
}

// NewStorageInMemory creates an in-memory storage (for testing)
func NewStorageInMemory() (*Storage, error) {
	db, err := OpenInMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	return newStorage(db), nil
}

func newStorage(db *DB) *Storage {
	return &Storage{
		db:       db,
		sessions: NewSessionStore(db),
		facts:    NewFactStore(db),
		firings:  NewFiringStore(db),
	}
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path
func (s *Storage) Path() string {
	return s.db.Path()
}

// SaveSession writes the session record, replaces its snapshot facts and
// appends the firings of the latest run, all in one transaction
func (s *Storage) SaveSession(rec *models.SessionRecord, facts []models.FactRecord, firings []models.FiringRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid session record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := saveSession(tx, rec); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to save session: %w", err)
	}
	if err := replaceFacts(tx, rec.SessionID, facts); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	if err := appendFirings(tx, firings); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to save firings: %w", err)
	}
	return tx.Commit()
}

// GetSession retrieves a session record, nil when unknown
func (s *Storage) GetSession(sessionID string) (*models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions.Get(sessionID)
}

// LoadSession retrieves a session record with its snapshot facts.
// The record is nil when the session is unknown.
func (s *Storage) LoadSession(sessionID string) (*models.SessionRecord, []models.FactRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.sessions.Get(sessionID)
	if err != nil || rec == nil {
		return rec, nil, err
	}
	facts, err := s.facts.GetBySession(sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return rec, facts, nil
}

// ListSessions retrieves all session records, most recently updated first
func (s *Storage) ListSessions() ([]models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions.ListAll()
}

// ListSessionsByStatus retrieves session records with the given status
func (s *Storage) ListSessionsByStatus(status models.SessionStatus) ([]models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions.GetByStatus(status)
}

// DeleteSession deletes a session with its facts and firings
func (s *Storage) DeleteSession(sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.Delete(sessionID)
}

// GetFirings retrieves the firing audit log of a session
func (s *Storage) GetFirings(sessionID string) ([]models.FiringRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.firings.GetBySession(sessionID)
}

// GetFiringCounts returns per-rule firing counts for a session
func (s *Storage) GetFiringCounts(sessionID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.firings.CountByRule(sessionID)
}
