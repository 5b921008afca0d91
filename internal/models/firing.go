// ABOUTME: FiringRecord is one entry of a session's rule-firing audit log
// ABOUTME: Records which rule fired, in which cycle, with which bindings
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FiringRecord represents a single fired rule instantiation
type FiringRecord struct {
	FiringID  string         `json:"firing_id" yaml:"firing_id"`
	SessionID string         `json:"session_id" yaml:"session_id"`
	Cycle     int            `json:"cycle" yaml:"cycle"`
	Rule      string         `json:"rule" yaml:"rule"`
	Salience  int            `json:"salience" yaml:"salience"`
	Bindings  map[string]any `json:"bindings,omitempty" yaml:"bindings,omitempty"`
	FiredAt   time.Time      `json:"fired_at" yaml:"fired_at"`
}

// NewFiringRecord creates a FiringRecord with validation
func NewFiringRecord(sessionID string, cycle int, rule string, salience int, bindings map[string]any) (*FiringRecord, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("session ID cannot be empty")
	}
	if strings.TrimSpace(rule) == "" {
		return nil, errors.New("rule name cannot be empty")
	}
	if cycle < 1 {
		return nil, fmt.Errorf("cycle must be positive, got %d", cycle)
	}
	return &FiringRecord{
		FiringID:  generateFiringID(),
		SessionID: sessionID,
		Cycle:     cycle,
		Rule:      rule,
		Salience:  salience,
		Bindings:  bindings,
		FiredAt:   time.Now().UTC(),
	}, nil
}

// generateFiringID generates a unique firing identifier
func generateFiringID() string {
	return fmt.Sprintf("firing_%s_%s", time.Now().Format("20060102_150405"), uuid.New().String()[:8])
}
