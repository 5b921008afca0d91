// ABOUTME: SessionRecord summarises one consultation for listing and persistence
// ABOUTME: Tracks status, pending question and the selected diagnosis
package models

import (
	"errors"
	"time"
)

// SessionStatus represents where a consultation stands
type SessionStatus string

const (
	StatusAwaitingInput SessionStatus = "AWAITING_INPUT"
	StatusCompleted     SessionStatus = "COMPLETED"
	StatusFailed        SessionStatus = "FAILED"
)

// SessionRecord is the persisted summary of a consultation
type SessionRecord struct {
	SessionID       string        `json:"session_id" yaml:"session_id"`
	Status          SessionStatus `json:"status" yaml:"status"`
	PendingQuestion string        `json:"pending_question,omitempty" yaml:"pending_question,omitempty"`
	Result          string        `json:"result,omitempty" yaml:"result,omitempty"`
	ResultCF        float64       `json:"result_cf,omitempty" yaml:"result_cf,omitempty"`
	AnswerCount     int           `json:"answer_count" yaml:"answer_count"`
	FailureReason   string        `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`
	CreatedAt       time.Time     `json:"created_at" yaml:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" yaml:"updated_at"`
}

// Validate checks if the SessionRecord has valid data
func (r *SessionRecord) Validate() error {
	if r.SessionID == "" {
		return errors.New("session ID cannot be empty")
	}
	if r.Status != StatusAwaitingInput && r.Status != StatusCompleted && r.Status != StatusFailed {
		return errors.New("invalid status")
	}
	if r.Status == StatusAwaitingInput && r.PendingQuestion == "" {
		return errors.New("awaiting session must name its pending question")
	}
	return nil
}

// Touch updates the modification timestamp
func (r *SessionRecord) Touch() {
	r.UpdatedAt = time.Now().UTC()
}
