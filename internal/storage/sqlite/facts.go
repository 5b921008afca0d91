// ABOUTME: Snapshot fact storage operations for SQLite
// ABOUTME: Replaces and reads a session's live facts in handle order
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/harper/dermacheck/internal/models"
)

// FactStore handles snapshot fact persistence
type FactStore struct {
	db *DB
}

// NewFactStore creates a new FactStore
func NewFactStore(db *DB) *FactStore {
	return &FactStore{db: db}
}

// Replace swaps a session's stored facts for facts, atomically
func (s *FactStore) Replace(sessionID string, facts []models.FactRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := replaceFacts(tx, sessionID, facts); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func replaceFacts(x execer, sessionID string, facts []models.FactRecord) error {
	if _, err := x.Exec("DELETE FROM session_facts WHERE session_id = ?", sessionID); err != nil {
		return err
	}
	for i, rec := range facts {
		f, err := models.DecodeFact(rec)
		if err != nil {
			return fmt.Errorf("fact %d: %w", i, err)
		}
		fieldsJSON, err := json.Marshal(rec.Fields)
		if err != nil {
			return err
		}
		_, err = x.Exec(`
			INSERT INTO session_facts (session_id, seq, kind, fact_key, fields)
			VALUES (?, ?, ?, ?, ?)
		`, sessionID, i, string(rec.Kind), nullString(f.Key()), string(fieldsJSON))
		if err != nil {
			return err
		}
	}
	return nil
}

// GetBySession retrieves a session's facts in handle order
func (s *FactStore) GetBySession(sessionID string) ([]models.FactRecord, error) {
	rows, err := s.db.Query(`
		SELECT kind, fields
		FROM session_facts
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return s.scanFacts(rows)
}

// scanFacts scans rows into a slice of FactRecord
func (s *FactStore) scanFacts(rows *sql.Rows) ([]models.FactRecord, error) {
	var facts []models.FactRecord

	for rows.Next() {
		var (
			kind       string
			fieldsJSON string
		)

		if err := rows.Scan(&kind, &fieldsJSON); err != nil {
			return nil, err
		}

		rec := models.FactRecord{Kind: models.FactKind(kind)}
		if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
			return nil, fmt.Errorf("corrupt %s fact: %w", kind, err)
		}

		facts = append(facts, rec)
	}

	return facts, rows.Err()
}

// nullString converts an empty string to sql.NullString
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
