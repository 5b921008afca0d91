// ABOUTME: Firing audit log storage operations for SQLite
// ABOUTME: Appends and reads rule firings per session
package sqlite

import (
	"database/sql"
	"encoding/json"

	"github.com/harper/dermacheck/internal/models"
)

// FiringStore handles firing audit persistence
type FiringStore struct {
	db *DB
}

// NewFiringStore creates a new FiringStore
func NewFiringStore(db *DB) *FiringStore {
	return &FiringStore{db: db}
}

// Append saves firings for a session
func (s *FiringStore) Append(firings []models.FiringRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := appendFirings(tx, firings); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func appendFirings(x execer, firings []models.FiringRecord) error {
	for _, f := range firings {
		var bindingsJSON sql.NullString
		if len(f.Bindings) > 0 {
			data, err := json.Marshal(f.Bindings)
			if err != nil {
				return err
			}
			bindingsJSON = sql.NullString{String: string(data), Valid: true}
		}

		_, err := x.Exec(`
			INSERT INTO firings (id, session_id, cycle, rule, salience, bindings, fired_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, f.FiringID, f.SessionID, f.Cycle, f.Rule, f.Salience, bindingsJSON, f.FiredAt)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetBySession retrieves all firings for a session in the order they were recorded
func (s *FiringStore) GetBySession(sessionID string) ([]models.FiringRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, cycle, rule, salience, bindings, fired_at
		FROM firings
		WHERE session_id = ?
		ORDER BY rowid ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var firings []models.FiringRecord
	for rows.Next() {
		var (
			f            models.FiringRecord
			bindingsJSON sql.NullString
		)

		err := rows.Scan(&f.FiringID, &f.SessionID, &f.Cycle, &f.Rule, &f.Salience, &bindingsJSON, &f.FiredAt)
		if err != nil {
			return nil, err
		}

		if bindingsJSON.Valid && bindingsJSON.String != "" {
			if err := json.Unmarshal([]byte(bindingsJSON.String), &f.Bindings); err != nil {
				f.Bindings = nil
			}
		}

		firings = append(firings, f)
	}

	return firings, rows.Err()
}

// CountByRule returns how often each rule fired in a session
func (s *FiringStore) CountByRule(sessionID string) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT rule, COUNT(*)
		FROM firings
		WHERE session_id = ?
		GROUP BY rule
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			rule string
			n    int
		)
		if err := rows.Scan(&rule, &n); err != nil {
			return nil, err
		}
		counts[rule] = n
	}
	return counts, rows.Err()
}
