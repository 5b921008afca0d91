// ABOUTME: Session record storage operations for SQLite
// ABOUTME: Implements CRUD and status queries for consultation summaries
package sqlite

import (
	"database/sql"

	"github.com/harper/dermacheck/internal/models"
)

// execer is satisfied by both *DB and *sql.Tx
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// SessionStore handles session record persistence
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a new SessionStore
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// Save saves or updates a session record (upsert)
func (s *SessionStore) Save(rec *models.SessionRecord) error {
	return saveSession(s.db, rec)
}

func saveSession(x execer, rec *models.SessionRecord) error {
	_, err := x.Exec(`
		INSERT INTO sessions (id, status, pending_question, result, result_cf, answer_count, failure_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			pending_question = excluded.pending_question,
			result = excluded.result,
			result_cf = excluded.result_cf,
			answer_count = excluded.answer_count,
			failure_reason = excluded.failure_reason,
			updated_at = excluded.updated_at
	`, rec.SessionID, string(rec.Status), nullString(rec.PendingQuestion), nullString(rec.Result),
		rec.ResultCF, rec.AnswerCount, nullString(rec.FailureReason), rec.CreatedAt, rec.UpdatedAt)

	return err
}

// Get retrieves a session record by ID
func (s *SessionStore) Get(sessionID string) (*models.SessionRecord, error) {
	var (
		rec           models.SessionRecord
		status        string
		pending       sql.NullString
		result        sql.NullString
		failureReason sql.NullString
	)

	err := s.db.QueryRow(`
		SELECT id, status, pending_question, result, result_cf, answer_count, failure_reason, created_at, updated_at
		FROM sessions
		WHERE id = ?
	`, sessionID).Scan(&rec.SessionID, &status, &pending, &result, &rec.ResultCF,
		&rec.AnswerCount, &failureReason, &rec.CreatedAt, &rec.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec.Status = models.SessionStatus(status)
	rec.PendingQuestion = pending.String
	rec.Result = result.String
	rec.FailureReason = failureReason.String

	return &rec, nil
}

// GetByStatus retrieves all sessions with a specific status
func (s *SessionStore) GetByStatus(status models.SessionStatus) ([]models.SessionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, status, pending_question, result, result_cf, answer_count, failure_reason, created_at, updated_at
		FROM sessions
		WHERE status = ?
		ORDER BY updated_at DESC, id ASC
	`, string(status))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return s.scanSessions(rows)
}

// ListAll retrieves all session records, most recently updated first
func (s *SessionStore) ListAll() ([]models.SessionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, status, pending_question, result, result_cf, answer_count, failure_reason, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return s.scanSessions(rows)
}

// Delete removes a session (facts and firings cascade delete)
func (s *SessionStore) Delete(sessionID string) (bool, error) {
	res, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", sessionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// scanSessions scans rows into a slice of SessionRecord
func (s *SessionStore) scanSessions(rows *sql.Rows) ([]models.SessionRecord, error) {
	var records []models.SessionRecord

	for rows.Next() {
		var (
			rec           models.SessionRecord
			status        string
			pending       sql.NullString
			result        sql.NullString
			failureReason sql.NullString
		)

		err := rows.Scan(&rec.SessionID, &status, &pending, &result, &rec.ResultCF,
			&rec.AnswerCount, &failureReason, &rec.CreatedAt, &rec.UpdatedAt)
		if err != nil {
			return nil, err
		}

		rec.Status = models.SessionStatus(status)
		rec.PendingQuestion = pending.String
		rec.Result = result.String
		rec.FailureReason = failureReason.String

		records = append(records, rec)
	}

	return records, rows.Err()
}
